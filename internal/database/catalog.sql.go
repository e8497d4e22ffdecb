// source: catalog.sql

package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getProductForOrder = `-- name: GetProductForOrder :one
SELECT id, name, base_price, image_path, is_active
FROM products
WHERE id = $1
`

type GetProductForOrderRow struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	BasePrice pgtype.Numeric `json:"base_price"`
	ImagePath pgtype.Text    `json:"image_path"`
	IsActive  bool           `json:"is_active"`
}

func (q *Queries) GetProductForOrder(ctx context.Context, id int64) (GetProductForOrderRow, error) {
	row := q.db.QueryRow(ctx, getProductForOrder, id)
	var i GetProductForOrderRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.BasePrice,
		&i.ImagePath,
		&i.IsActive,
	)
	return i, err
}

const listActiveVariantGroupsByProduct = `-- name: ListActiveVariantGroupsByProduct :many
SELECT id, product_id, name, is_required, max_select
FROM variant_groups
WHERE product_id = $1 AND is_active = true
ORDER BY sort_order ASC, id ASC
`

type ListActiveVariantGroupsByProductRow struct {
	ID         int64  `json:"id"`
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	IsRequired bool   `json:"is_required"`
	MaxSelect  int32  `json:"max_select"`
}

func (q *Queries) ListActiveVariantGroupsByProduct(ctx context.Context, productID int64) ([]ListActiveVariantGroupsByProductRow, error) {
	rows, err := q.db.Query(ctx, listActiveVariantGroupsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListActiveVariantGroupsByProductRow{}
	for rows.Next() {
		var i ListActiveVariantGroupsByProductRow
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.Name,
			&i.IsRequired,
			&i.MaxSelect,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listVariantValuesByGroups = `-- name: ListVariantValuesByGroups :many
SELECT id, group_id, name, extra_price, is_active
FROM variant_values
WHERE group_id = ANY($1::bigint[])
ORDER BY sort_order ASC, id ASC
`

type ListVariantValuesByGroupsRow struct {
	ID         int64          `json:"id"`
	GroupID    int64          `json:"group_id"`
	Name       string         `json:"name"`
	ExtraPrice pgtype.Numeric `json:"extra_price"`
	IsActive   bool           `json:"is_active"`
}

// Inactive values are returned too so callers can tell "inactive" apart from
// "does not belong to this product".
func (q *Queries) ListVariantValuesByGroups(ctx context.Context, groupIds []int64) ([]ListVariantValuesByGroupsRow, error) {
	rows, err := q.db.Query(ctx, listVariantValuesByGroups, groupIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListVariantValuesByGroupsRow{}
	for rows.Next() {
		var i ListVariantValuesByGroupsRow
		if err := rows.Scan(
			&i.ID,
			&i.GroupID,
			&i.Name,
			&i.ExtraPrice,
			&i.IsActive,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
