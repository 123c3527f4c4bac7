package handler

import "github.com/daniarmadeit/idi-motors-bot/internal/entities"

type SubmitListingParams struct {
	URL string `json:"url" validate:"required,url"`
}

type SubmitResponse struct {
	ID       string `json:"id"`
	Position int    `json:"position"` // 1-based place in the backlog
}

type StatusResponse struct {
	entities.RequestInfo
	PreviewCount int `json:"preview_count"`
}

type DescriptionResponse struct {
	Description string `json:"description"`
}
