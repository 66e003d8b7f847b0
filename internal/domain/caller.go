package domain

// Caller identifies who is performing an operation. It is built from the
// verified token at the HTTP edge and passed explicitly into every service
// call.
type Caller struct {
	UserID string
	Role   Role
}

// Authenticated reports whether the caller carries an identity at all.
func (c Caller) Authenticated() bool {
	return c.UserID != "" && c.Role.Valid()
}

// IsReviewer reports whether the caller holds the elevated role.
func (c Caller) IsReviewer() bool {
	return c.Role == RoleAdmin
}

// CanAccess reports whether the caller may read or delete a record owned by ownerID.
func (c Caller) CanAccess(ownerID string) bool {
	return c.IsReviewer() || (c.UserID != "" && c.UserID == ownerID)
}
