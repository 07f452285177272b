package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/profilehub/profiles"
	"github.com/uptrace/bun"
)

type StorageObject struct {
	bun.BaseModel `bun:"table:storage_objects,alias:o"`

	Bucket      string    `bun:",pk"`
	Path        string    `bun:",pk"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	ContentType string    `bun:",notnull"`
	Data        []byte    `bun:",notnull,type:bytea"`
}

func (o StorageObject) ToDomain() profiles.Object {
	return profiles.Object{
		Path:        o.Path,
		ContentType: o.ContentType,
		Data:        o.Data,
	}
}

// ObjectStore keeps objects of a single bucket in postgres.
type ObjectStore struct {
	DB     *bun.DB
	Bucket string
}

var _ profiles.ObjectStore = (*ObjectStore)(nil)

func (s *ObjectStore) Upload(ctx context.Context, path string, object profiles.Object) error {
	res, err := s.DB.NewInsert().
		Model(&StorageObject{
			Bucket:      s.Bucket,
			Path:        path,
			ContentType: object.ContentType,
			Data:        object.Data,
		}).
		Ignore().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert object: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return profiles.ErrObjectExists
	}
	return nil
}

func (s *ObjectStore) Download(ctx context.Context, path string) (profiles.Object, error) {
	object := new(StorageObject)
	err := s.DB.NewSelect().
		Model(object).
		Where("o.bucket=?", s.Bucket).
		Where("o.path=?", path).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profiles.Object{}, profiles.ErrObjectNotFound
		}
		return profiles.Object{}, fmt.Errorf("select object: %w", err)
	}
	return object.ToDomain(), nil
}
