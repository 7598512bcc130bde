package domain

// Actor is the caller identity resolved by the transport layer. System actors
// are trusted collaborators such as the overdue trigger or the payment
// gateway callback.
type Actor struct {
	UserID int64 `json:"user_id"`
	System bool  `json:"system"`
}

func UserActor(userID int64) Actor {
	return Actor{UserID: userID}
}

func SystemActor() Actor {
	return Actor{System: true}
}

// AuthorizeOwner allows only the operator of the ledger's location.
func AuthorizeOwner(actor Actor, ledger *Ledger) error {
	if actor.UserID != 0 && actor.UserID == ledger.OwnerID {
		return nil
	}
	return ErrForbidden.Withf("user %d does not operate ledger %d", actor.UserID, ledger.ID)
}

// AuthorizeBorrowerOrOwner allows the loan's borrower and the location operator.
func AuthorizeBorrowerOrOwner(actor Actor, loan *Loan, ledger *Ledger) error {
	if actor.UserID != 0 && (actor.UserID == loan.BorrowerID || actor.UserID == ledger.OwnerID) {
		return nil
	}
	return ErrForbidden.Withf("user %d is neither borrower nor owner of loan %d", actor.UserID, loan.ID)
}

// AuthorizeOwnerOrSystem allows the location operator and system actors.
func AuthorizeOwnerOrSystem(actor Actor, ledger *Ledger) error {
	if actor.System {
		return nil
	}
	return AuthorizeOwner(actor, ledger)
}

func AuthorizeSystem(actor Actor) error {
	if actor.System {
		return nil
	}
	return ErrForbidden.Withf("user %d is not a system actor", actor.UserID)
}
