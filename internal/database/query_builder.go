package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/money"
)

// Reserved query keys are never treated as filters
const (
	ParamSearch = "searchTerm"
	ParamSort   = "sort"
	ParamFields = "fields"
	ParamPage   = "page"
	ParamLimit  = "limit"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultSort  = "-created_at"
)

var reservedParams = map[string]bool{
	ParamSearch: true,
	ParamSort:   true,
	ParamFields: true,
	ParamPage:   true,
	ParamLimit:  true,
}

// FieldKind decides how a filter value is parsed and compared
type FieldKind int

const (
	KindText FieldKind = iota
	KindEnum
	KindNumber
	KindMoney
	KindBool
	KindTime
	KindUUID
	KindArray
)

// Field exposes one column to list queries under an API name
type Field struct {
	Name       string
	Column     string
	Kind       FieldKind
	Searchable bool
	Filterable bool
	Sortable   bool
}

// ListSpec describes a listable resource
type ListSpec struct {
	// From is everything between FROM and WHERE, joins included
	From   string
	Fields []Field
	// IDColumn is always selected and used as the sort tiebreaker
	IDColumn string

	byName map[string]Field
}

// NewListSpec indexes the field whitelist
func NewListSpec(from, idColumn string, fields ...Field) *ListSpec {
	spec := &ListSpec{From: from, Fields: fields, IDColumn: idColumn, byName: make(map[string]Field, len(fields))}
	for _, f := range fields {
		spec.byName[f.Name] = f
	}
	return spec
}

func (s *ListSpec) field(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Condition is a fixed equality predicate added by the caller (ownership, parent id)
type Condition struct {
	Column string
	Value  interface{}
}

// ListQuery is a parsed request query
type ListQuery struct {
	Search string
	Page   int
	Limit  int
	Fields []string

	where   []string
	args    []interface{}
	orderBy []string
	columns []string
}

// Offset returns the number of rows to skip
func (q *ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

func (q *ListQuery) bind(v interface{}) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

// ParseListQuery turns raw query parameters into a ListQuery for spec.
// Unknown filter, sort and projection names are ignored; malformed filter
// values are rejected.
func ParseListQuery(spec *ListSpec, params map[string]string, base ...Condition) (*ListQuery, error) {
	q := &ListQuery{
		Page:  positiveInt(params[ParamPage], DefaultPage),
		Limit: positiveInt(params[ParamLimit], DefaultLimit),
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}

	for _, c := range base {
		q.where = append(q.where, fmt.Sprintf("%s = %s", c.Column, q.bind(c.Value)))
	}

	q.Search = strings.TrimSpace(params[ParamSearch])
	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		var ors []string
		var placeholder string
		for _, f := range spec.Fields {
			if !f.Searchable {
				continue
			}
			if placeholder == "" {
				placeholder = q.bind(pattern)
			}
			ors = append(ors, fmt.Sprintf("%s ILIKE %s", f.Column, placeholder))
		}
		if len(ors) > 0 {
			q.where = append(q.where, "("+strings.Join(ors, " OR ")+")")
		}
	}

	// Sorted keys keep placeholder numbering deterministic
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reservedParams[key] {
			continue
		}
		name, op := splitOperator(key)
		f, ok := spec.field(name)
		if !ok || !f.Filterable || op == "" {
			continue
		}
		cond, err := q.filter(f, op, params[key])
		if err != nil {
			return nil, err
		}
		q.where = append(q.where, cond)
	}

	sortParam := params[ParamSort]
	if strings.TrimSpace(sortParam) == "" {
		sortParam = DefaultSort
	}
	hasID := false
	for _, part := range strings.Split(sortParam, ",") {
		part = strings.TrimSpace(part)
		dir := "ASC"
		if strings.HasPrefix(part, "-") {
			dir = "DESC"
			part = part[1:]
		}
		f, ok := spec.field(part)
		if !ok || !f.Sortable {
			continue
		}
		if f.Column == spec.IDColumn {
			hasID = true
		}
		q.orderBy = append(q.orderBy, f.Column+" "+dir)
	}
	if !hasID {
		q.orderBy = append(q.orderBy, spec.IDColumn+" ASC")
	}

	if raw := strings.TrimSpace(params[ParamFields]); raw != "" {
		seen := map[string]bool{}
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if _, ok := spec.field(name); ok && !seen[name] {
				seen[name] = true
				q.Fields = append(q.Fields, name)
			}
		}
	}
	q.columns = selectColumns(spec, q.Fields)

	return q, nil
}

func (q *ListQuery) filter(f Field, op, raw string) (string, error) {
	sqlOp := map[string]string{"eq": "=", "ne": "<>", "gt": ">", "gte": ">=", "lt": "<", "lte": "<="}[op]
	if sqlOp == "" {
		return "", apperrors.Validation("unsupported operator %q for %s", op, f.Name)
	}

	ordered := f.Kind == KindNumber || f.Kind == KindMoney || f.Kind == KindTime
	if !ordered && op != "eq" && op != "ne" {
		return "", apperrors.Validation("operator %q is not allowed for %s", op, f.Name)
	}

	if f.Kind == KindArray {
		if op == "ne" {
			return fmt.Sprintf("NOT (%s = ANY(%s::text[]))", q.bind(raw), f.Column), nil
		}
		return fmt.Sprintf("%s = ANY(%s::text[])", q.bind(raw), f.Column), nil
	}

	value, err := parseFilterValue(f, raw)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", f.Column, sqlOp, q.bind(value)), nil
}

func parseFilterValue(f Field, raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	switch f.Kind {
	case KindNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, apperrors.Validation("%s must be a number", f.Name)
		}
		return v, nil
	case KindMoney:
		v, err := money.Parse(raw)
		if err != nil {
			return nil, apperrors.Validation("%s must be an amount", f.Name)
		}
		return int64(v), nil
	case KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, apperrors.Validation("%s must be true or false", f.Name)
		}
		return v, nil
	case KindTime:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, apperrors.Validation("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", f.Name)
		}
		return t, nil
	case KindUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.Validation("%s must be a valid id", f.Name)
		}
		return id, nil
	default:
		return raw, nil
	}
}

// splitOperator splits "cost_from[gte]" into ("cost_from", "gte")
func splitOperator(key string) (string, string) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, "eq"
	}
	if !strings.HasSuffix(key, "]") || open == 0 {
		return key, ""
	}
	return key[:open], key[open+1 : len(key)-1]
}

func selectColumns(spec *ListSpec, names []string) []string {
	if len(names) == 0 {
		cols := make([]string, 0, len(spec.Fields))
		for _, f := range spec.Fields {
			cols = append(cols, fmt.Sprintf("%s AS %s", f.Column, f.Name))
		}
		return cols
	}
	cols := []string{fmt.Sprintf("%s AS id", spec.IDColumn)}
	for _, name := range names {
		f := spec.byName[name]
		if f.Column == spec.IDColumn {
			continue
		}
		cols = append(cols, fmt.Sprintf("%s AS %s", f.Column, f.Name))
	}
	return cols
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func positiveInt(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// DataSQL returns the page query and its arguments
func (q *ListQuery) DataSQL(spec *ListSpec) (string, []interface{}) {
	args := append([]interface{}{}, q.args...)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		strings.Join(q.columns, ", "), spec.From, q.whereClause(), strings.Join(q.orderBy, ", "),
		len(args)+1, len(args)+2)
	return query, append(args, q.Limit, q.Offset())
}

// CountSQL returns the count query. It shares the page query's predicate.
func (q *ListQuery) CountSQL(spec *ListSpec) (string, []interface{}) {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", spec.From, q.whereClause()), q.args
}

func (q *ListQuery) whereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// List runs the page and count queries concurrently and assembles the result
func List[T any](ctx context.Context, db *sqlx.DB, spec *ListSpec, params map[string]string, base ...Condition) (*models.ListResult[T], *ListQuery, error) {
	q, err := ParseListQuery(spec, params, base...)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]T, 0, q.Limit)
	var total int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		query, args := q.DataSQL(spec)
		if err := db.SelectContext(gctx, &rows, query, args...); err != nil {
			return fmt.Errorf("failed to list rows: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		query, args := q.CountSQL(spec)
		if err := db.GetContext(gctx, &total, query, args...); err != nil {
			return fmt.Errorf("failed to count rows: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return &models.ListResult[T]{
		Data: rows,
		Meta: NewMeta(q.Page, q.Limit, total),
	}, q, nil
}

// NewMeta computes pagination metadata
func NewMeta(page, limit, total int) models.Meta {
	totalPage := 0
	if limit > 0 {
		totalPage = (total + limit - 1) / limit
	}
	return models.Meta{Page: page, Limit: limit, Total: total, TotalPage: totalPage}
}
