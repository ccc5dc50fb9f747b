package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
)

const tourSearch = "(title ILIKE $1 OR description ILIKE $1 OR location ILIKE $1 OR departure_location ILIKE $1 OR arrival_location ILIKE $1)"

func TestParseListQuery(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		q, err := ParseListQuery(TourListSpec, map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, 1, q.Page)
		assert.Equal(t, 10, q.Limit)
		assert.Equal(t, 0, q.Offset())

		query, args := q.CountSQL(TourListSpec)
		assert.Equal(t, "SELECT COUNT(*) FROM tours", query)
		assert.Empty(t, args)

		query, args = q.DataSQL(TourListSpec)
		assert.Contains(t, query, "ORDER BY created_at DESC, id ASC LIMIT $1 OFFSET $2")
		assert.Equal(t, []interface{}{10, 0}, args)
	})

	t.Run("search, filters, sort and paging", func(t *testing.T) {
		q, err := ParseListQuery(TourListSpec, map[string]string{
			"searchTerm":     "sea",
			"cost_from[gte]": "100",
			"location":       "Cox's Bazar",
			"sort":           "cost_from",
			"page":           "2",
			"limit":          "5",
		})
		require.NoError(t, err)
		assert.Equal(t, 5, q.Offset())

		count, countArgs := q.CountSQL(TourListSpec)
		assert.Equal(t, "SELECT COUNT(*) FROM tours WHERE "+tourSearch+" AND cost_from >= $2 AND location = $3", count)
		assert.Equal(t, []interface{}{"%sea%", int64(10000), "Cox's Bazar"}, countArgs)

		data, dataArgs := q.DataSQL(TourListSpec)
		assert.Contains(t, data, " WHERE "+tourSearch+" AND cost_from >= $2 AND location = $3 ")
		assert.Contains(t, data, "ORDER BY cost_from ASC, id ASC LIMIT $4 OFFSET $5")
		assert.Equal(t, append(countArgs, 5, 5), dataArgs)
	})

	t.Run("reserved keys and unknown names are ignored", func(t *testing.T) {
		q, err := ParseListQuery(TourListSpec, map[string]string{
			"fields":   "title,unknown,title",
			"sort":     "-nope",
			"color":    "red",
			"included": "Lunch",
		})
		require.NoError(t, err)
		query, args := q.CountSQL(TourListSpec)
		assert.Equal(t, "SELECT COUNT(*) FROM tours", query)
		assert.Empty(t, args)
		assert.Equal(t, []string{"title"}, q.Fields)

		data, _ := q.DataSQL(TourListSpec)
		assert.Equal(t, "SELECT id AS id, title AS title FROM tours ORDER BY id ASC LIMIT $1 OFFSET $2", data)
	})

	t.Run("blank search term adds no predicate", func(t *testing.T) {
		q, err := ParseListQuery(TourListSpec, map[string]string{"searchTerm": "   "})
		require.NoError(t, err)
		query, _ := q.CountSQL(TourListSpec)
		assert.Equal(t, "SELECT COUNT(*) FROM tours", query)
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		q, err := ParseListQuery(TourListSpec, map[string]string{"searchTerm": "50%_off"})
		require.NoError(t, err)
		_, args := q.CountSQL(TourListSpec)
		assert.Equal(t, []interface{}{`%50\%\_off%`}, args)
	})

	t.Run("limit is capped and bad paging falls back", func(t *testing.T) {
		q, err := ParseListQuery(TourListSpec, map[string]string{"limit": "5000", "page": "-3"})
		require.NoError(t, err)
		assert.Equal(t, MaxLimit, q.Limit)
		assert.Equal(t, 1, q.Page)
	})

	t.Run("array membership", func(t *testing.T) {
		guide := uuid.New()
		q, err := ParseListQuery(TourListSpec, map[string]string{"guides": guide.String()})
		require.NoError(t, err)
		query, args := q.CountSQL(TourListSpec)
		assert.Equal(t, "SELECT COUNT(*) FROM tours WHERE $1 = ANY(guides::text[])", query)
		assert.Equal(t, []interface{}{guide.String()}, args)
	})

	t.Run("base conditions come first", func(t *testing.T) {
		userID := uuid.New()
		q, err := ParseListQuery(BookingListSpec, map[string]string{"status": "PENDING"}, Condition{Column: "b.user_id", Value: userID})
		require.NoError(t, err)
		query, args := q.CountSQL(BookingListSpec)
		assert.Contains(t, query, "WHERE b.user_id = $1 AND b.status = $2")
		assert.Equal(t, []interface{}{userID, "PENDING"}, args)
	})

	t.Run("malformed filter values are rejected", func(t *testing.T) {
		cases := map[string]string{
			"cost_from[gte]":  "cheap",
			"start_date[lt]":  "yesterday",
			"id":              "not-a-uuid",
			"max_guest":       "ten",
			"title[gt]":       "a",
			"cost_from[like]": "10",
		}
		for key, value := range cases {
			_, err := ParseListQuery(TourListSpec, map[string]string{key: value})
			assert.True(t, apperrors.IsValidation(err), key)
		}
	})
}

func TestNewMeta(t *testing.T) {
	assert.Equal(t, models.Meta{Page: 1, Limit: 10, Total: 0, TotalPage: 0}, NewMeta(1, 10, 0))
	assert.Equal(t, models.Meta{Page: 2, Limit: 10, Total: 21, TotalPage: 3}, NewMeta(2, 10, 21))
	assert.Equal(t, 2, NewMeta(1, 10, 20).TotalPage)
}

func TestList(t *testing.T) {
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)

	params := map[string]string{"fields": "title", "location": "Sylhet", "limit": "2"}
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id AS id, title AS title FROM tours WHERE location = $1 ORDER BY created_at DESC, id ASC LIMIT $2 OFFSET $3`)).
		WithArgs("Sylhet", 2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(first.String(), "Tea Gardens").
			AddRow(second.String(), "Ratargul"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM tours WHERE location = $1`)).
		WithArgs("Sylhet").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	result, q, err := List[models.Tour](context.Background(), db, TourListSpec, params)
	require.NoError(t, err)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "Tea Gardens", result.Data[0].Title)
	assert.Equal(t, first, result.Data[0].ID)
	assert.Equal(t, models.Meta{Page: 1, Limit: 2, Total: 5, TotalPage: 3}, result.Meta)
	assert.Equal(t, []string{"title"}, q.Fields)
	assert.NoError(t, mock.ExpectationsWereMet())
}
