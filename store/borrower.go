package store

import (
	"context"

	"scilems/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BorrowerOf follows a transaction's cart back to the user who owns it.
func BorrowerOf(ctx context.Context, carts CartRepository, users UserRepository, cartID primitive.ObjectID) (*models.User, error) {
	cart, err := carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return users.GetUser(ctx, cart.BorrowerID)
}
