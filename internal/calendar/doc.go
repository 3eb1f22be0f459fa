// Package calendar implements the connection gate.
//
// The gate decides, for a given instant, whether the sync client should hold
// a live connection to the dashboard backend:
//   - Weekends and exchange holidays veto the connection
//   - Day session opens at 09:00 (10:00 on the first trading day of the year
//     and on college entrance exam days) and closes at 15:45 inclusive
//   - Night session runs from 18:00 to 05:00
//
// Holiday and delayed-open tables come from an injectable Calendar. The
// built-in tables cover 2025 and 2026; years missing from the calendar are
// treated as having no holidays.
package calendar
