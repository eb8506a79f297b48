package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"checkout-service/apperrors"
	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

type CartRepository interface {
	GetActiveCart(ctx context.Context, cartID uint) (*models.Cart, error)
	ClearCart(ctx context.Context, cartID, userID uint, sessionID string) error
	RestoreCart(ctx context.Context, cart *models.Cart, sessionID string) error
}

// RedisCartRepository reads carts written by the cart service.
type RedisCartRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCartRepository(client redis.Cmdable, ttl time.Duration) *RedisCartRepository {
	return &RedisCartRepository{client: client, ttl: ttl}
}

func cartKey(cartID uint) string {
	return fmt.Sprintf("cart:%d", cartID)
}

func userCartKey(userID uint) string {
	return fmt.Sprintf("cart:user:%d", userID)
}

func sessionCartKey(sessionID string) string {
	return "cart:session:" + sessionID
}

func (r *RedisCartRepository) getCart(ctx context.Context, cartID uint) (*models.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart %d: %w", cartID, err)
	}
	cart.ID = cartID
	return &cart, nil
}

// GetActiveCart returns ErrNotFound when the cart is missing or not Active.
func (r *RedisCartRepository) GetActiveCart(ctx context.Context, cartID uint) (*models.Cart, error) {
	cart, err := r.getCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status != models.CartStatusActive {
		return nil, apperrors.ErrNotFound
	}
	return cart, nil
}

// ClearCart empties the cart, marks it Converted and drops the owner's
// pointers to it.
func (r *RedisCartRepository) ClearCart(ctx context.Context, cartID, userID uint, sessionID string) error {
	cart, err := r.getCart(ctx, cartID)
	if err != nil {
		return err
	}

	cart.CartItems = []models.CartItem{}
	cart.CartCoupons = []models.CartCoupon{}
	cart.Status = models.CartStatusConverted
	cart.UpdatedAt = time.Now()

	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, cartKey(cartID), data, r.ttl)
		if userID > 0 {
			pipe.Del(ctx, userCartKey(userID))
		}
		if sessionID != "" {
			pipe.Del(ctx, sessionCartKey(sessionID))
		}
		return nil
	})
	return err
}

// RestoreCart writes cart back as Active and points its owner's keys at it
// again. It undoes ClearCart for a checkout that did not commit.
func (r *RedisCartRepository) RestoreCart(ctx context.Context, cart *models.Cart, sessionID string) error {
	restored := cart.Clone()
	restored.Status = models.CartStatusActive
	restored.UpdatedAt = time.Now()

	data, err := json.Marshal(restored)
	if err != nil {
		return err
	}

	id := strconv.FormatUint(uint64(cart.ID), 10)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, cartKey(cart.ID), data, r.ttl)
		if cart.UserID > 0 {
			pipe.Set(ctx, userCartKey(cart.UserID), id, r.ttl)
		}
		if sessionID != "" {
			pipe.Set(ctx, sessionCartKey(sessionID), id, r.ttl)
		}
		return nil
	})
	return err
}
