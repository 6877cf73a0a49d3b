package services

import (
	"errors"
	"fmt"

	"github.com/orderdesk/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderItemNotFound indicates no line with the given sequence exists on the order.
	ErrOrderItemNotFound = errors.New("order: item not found")
	// ErrOrderInvalidTransition indicates the order cannot move to the requested status.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates a uniqueness or referential conflict in storage.
	ErrOrderConflict = errors.New("order: conflict")

	// ErrCustomerNotFound indicates the referenced customer does not exist.
	ErrCustomerNotFound = errors.New("customer: not found")
	// ErrAddressNotFound indicates a referenced shipping or billing address does not exist.
	ErrAddressNotFound = errors.New("address: not found")
	// ErrProductNotFound indicates the product or its stock row does not exist.
	ErrProductNotFound = errors.New("product: not found")

	// ErrInsufficientStock indicates the requested quantity exceeds available stock. The wrapped
	// chain carries a *repositories.InventoryError with the product and quantities.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInventoryInvalidInput signals a blank product or non-positive quantity.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")

	// ErrAuthInvalidInput signals a blank or malformed username or password.
	ErrAuthInvalidInput = errors.New("auth: invalid input")
	// ErrUsernameTaken indicates registration hit an existing username.
	ErrUsernameTaken = errors.New("auth: username already taken")
	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// mapRepositoryError translates repository categories to service sentinels. notFound and
// conflict may be nil when the category cannot occur for the call site.
func mapRepositoryError(err error, notFound, conflict error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && notFound != nil:
			return fmt.Errorf("%w: %w", notFound, err)
		case repoErr.IsConflict() && conflict != nil:
			return fmt.Errorf("%w: %w", conflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	return err
}
