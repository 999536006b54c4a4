package backend

import (
	"context"
	"net/http"

	"github.com/UnknownOlympus/aerodrome/internal/models"
)

// AddReview posts a rated comment about an airport on behalf of the token owner.
func (c *Client) AddReview(ctx context.Context, token string, review models.Review) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/api/comments/add", body: review, token: token}, nil)
}
