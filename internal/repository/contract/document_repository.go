package contract

import (
	"context"

	"virtualrag-be/internal/entity"
	"virtualrag-be/internal/repository/specification"
)

type DocumentRepository interface {
	Create(ctx context.Context, document *entity.DocumentRecord) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DocumentRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
