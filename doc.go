// Package auth implements a multi-tenant account administration backend:
// organizations, users, memberships, role permissions, team and affiliation
// invitations, staff review tasks, and product subscriptions, persisted via
// Bun and exposed over a Fiber REST surface.
//
// Invitations:
//   - Team invitations mint an HS256 token embedding the invitation id.
//     Accepting one derives each membership's status from the org access
//     type, the invitee's login source, and their verification state; rows
//     that need staff eyes spawn a review Task in the same transaction.
//   - Affiliation invitations move a business registration between
//     accounts. EMAIL-type invitations expire by computed TTL; REQUEST-type
//     invitations never auto-expire and can only be refused. The
//     PENDING-to-ACCEPTED transition runs as a single conditional UPDATE so
//     concurrent redemptions cannot both succeed.
//
// Authorization:
//   - AuthGate resolves the caller's membership role on the target org and
//     applies one-of / disabled / equals role policies. Staff bypass the
//     lookup; system accounts authorize by product-code claim with ALL as
//     the super-admin sentinel.
//   - PermissionResolver caches (org status, membership type) action sets,
//     collapsing non-restricted org statuses into one bucket.
//
// Auditing:
//   - Every mutating service call appends an AuditRecord row inside its
//     transaction and emits a best-effort ActivityEvent after commit.
package auth
