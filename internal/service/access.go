package service

import "github.com/iliyamo/book-delivery/internal/model"

// Authorization predicates evaluated by each operation against the explicit
// principal passed in by the caller.

// requireCustomer allows only CUSTOMER principals (order placement).
func requireCustomer(p model.Principal) error {
	if !p.IsCustomer() {
		return ErrAccessDenied
	}
	return nil
}

// requireAdmin allows only ADMIN principals.
func requireAdmin(p model.Principal) error {
	if !p.IsAdmin() {
		return ErrAccessDenied
	}
	return nil
}

// requireAuthenticated allows any principal with a known role.
func requireAuthenticated(p model.Principal) error {
	if p.ID == 0 || !p.Role.Valid() {
		return ErrAccessDenied
	}
	return nil
}

// canAccessCustomer allows ADMIN, or the CUSTOMER whose id is customerID.
// Used for reading an order (customerID = owner) and for per-customer
// listings and statistics.
func canAccessCustomer(p model.Principal, customerID uint64) error {
	if p.IsAdmin() {
		return nil
	}
	if p.IsCustomer() && p.ID != 0 && p.ID == customerID {
		return nil
	}
	return ErrAccessDenied
}
