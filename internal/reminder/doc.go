// Package reminder owns the mapping from a habit's recurrence rule to the
// concrete notification requests handed to a notification backend, and the
// numeric id scheme that lets those requests be cancelled as a group later.
//
// The scheduler itself is stateless: requests are derived fresh on every
// call and the backend owns persistence and firing. Rescheduling a habit
// always cancels the habit's full id range first, so repeated calls are
// idempotent with respect to the final scheduled state.
package reminder
