package search

import "github.com/hyperjump/regqa/internal/models"

// ProcessQuery validates the request and applies the default k.
func ProcessQuery(req *models.QueryRequest, defaultK int) error {
	return req.Validate(defaultK)
}
