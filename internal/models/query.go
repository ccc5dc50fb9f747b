package models

// Meta is the pagination metadata of a list response
type Meta struct {
	Page      int `json:"page"`
	Limit     int `json:"limit"`
	Total     int `json:"total"`
	TotalPage int `json:"total_page"`
}

// ListResult is a page of rows plus its metadata
type ListResult[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}
