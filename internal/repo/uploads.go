package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"stowplan/internal/domain"
)

const uploadColumns = `id,upload_name,COALESCE(filename,''),COALESCE(site,''),COALESCE(site2,''),total_items,total_entries,total_weight,total_area,bsf_factor,COALESCE(metadata_json,''),uploaded_at`

func scanUpload(s interface{ Scan(...any) error }) (domain.Upload, error) {
	var u domain.Upload
	var meta string
	err := s.Scan(&u.ID, &u.Name, &u.Filename, &u.Site, &u.Site2, &u.TotalItems, &u.TotalEntries, &u.TotalWeight, &u.TotalArea, &u.BSF, &meta, &u.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &u.Metadata); err != nil {
			return u, err
		}
	}
	return u, nil
}

func (r Repo) InsertUpload(ctx context.Context, tx *sql.Tx, u domain.Upload) error {
	var meta any
	if len(u.Metadata) > 0 {
		data, err := json.Marshal(u.Metadata)
		if err != nil {
			return err
		}
		meta = string(data)
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO uploads(id,upload_name,filename,site,site2,total_items,total_entries,total_weight,total_area,bsf_factor,metadata_json,uploaded_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Name, nullable(u.Filename), nullable(u.Site), nullable(u.Site2), u.TotalItems, u.TotalEntries, u.TotalWeight, u.TotalArea, u.BSF, meta, u.UploadedAt)
	return mapWriteErr(err)
}

func (r Repo) GetUpload(ctx context.Context, id string) (domain.Upload, error) {
	return scanUpload(r.DB.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id=?`, id))
}

func (r Repo) ListUploads(ctx context.Context) ([]domain.Upload, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+uploadColumns+` FROM uploads ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) DeleteUpload(ctx context.Context, tx *sql.Tx, id string) error {
	return r.deleteByID(ctx, tx, "uploads", id)
}

const itemColumns = `id,upload_id,name,COALESCE(description,''),quantity,COALESCE(category,''),weight,length,width,height,area,psf,COALESCE(service_branch,''),priority_order,requires_climate_control,requires_special_handling,COALESCE(row_data,''),created_at`

func (r Repo) InsertItems(ctx context.Context, tx *sql.Tx, items []domain.InventoryItem) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO inventory_items(`+itemColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, it.ID, it.UploadID, it.Name, nullable(it.Description), it.Quantity, nullable(it.Category),
			it.Weight, it.Length, it.Width, it.Height, it.Area, it.PSF, nullable(it.ServiceBranch), it.PriorityOrder,
			it.RequiresClimateControl, it.RequiresSpecialHandling, nullable(it.RowData), it.CreatedAt); err != nil {
			return mapWriteErr(err)
		}
	}
	return nil
}

// ListItems returns an upload's items in insertion order.
func (r Repo) ListItems(ctx context.Context, uploadID string) ([]domain.InventoryItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE upload_id=? ORDER BY rowid`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.InventoryItem{}
	for rows.Next() {
		var it domain.InventoryItem
		if err := rows.Scan(&it.ID, &it.UploadID, &it.Name, &it.Description, &it.Quantity, &it.Category, &it.Weight, &it.Length, &it.Width,
			&it.Height, &it.Area, &it.PSF, &it.ServiceBranch, &it.PriorityOrder, &it.RequiresClimateControl, &it.RequiresSpecialHandling,
			&it.RowData, &it.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}
