package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/entity"
)

func TestEnrichCreatedBy(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-7"})

	doc := entity.BaseDocument{}
	EnrichCreatedBy(ctx, &doc)
	assert.Equal(t, "u-7", doc.CreatedBy)

	doc.CreatedBy = "importer"
	EnrichCreatedBy(ctx, &doc)
	assert.Equal(t, "importer", doc.CreatedBy)

	anon := entity.BaseDocument{}
	EnrichCreatedBy(context.Background(), &anon)
	assert.Empty(t, anon.CreatedBy)
}

func TestActor(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-7"})

	assert.Equal(t, "clerk", Actor(ctx, "clerk"))
	assert.Equal(t, "u-7", Actor(ctx, ""))
	assert.Equal(t, "system", Actor(context.Background(), ""))
}
