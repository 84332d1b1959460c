package shops

import (
	"context"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

func TestNewServiceRequiresRepo(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestListOpenSkipsClosedShops(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Shop{Name: "Beta"}))
	require.NoError(t, repo.Create(ctx, &models.Shop{Name: "Alpha"}))
	require.NoError(t, repo.Create(ctx, &models.Shop{Name: "Closed", State: enums.ShopStateClosed}))

	svc, err := NewService(repo)
	require.NoError(t, err)

	base, _ := url.Parse("http://api.test/api/v1/shops")
	page, err := svc.ListOpen(ctx, pagination.Params{Limit: 1}, base)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Alpha", page.Results[0].Name)
	require.NotNil(t, page.Next)
	assert.Nil(t, page.Previous)
}

func TestSetPartnerState(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	owner := uuid.New()
	require.NoError(t, repo.Create(ctx, &models.Shop{Name: "Mine", UserID: &owner}))

	svc, err := NewService(repo)
	require.NoError(t, err)

	dto, err := svc.SetPartnerState(ctx, owner, "off")
	require.NoError(t, err)
	assert.Equal(t, enums.ShopStateClosed, dto.State)

	loaded, err := svc.PartnerState(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, enums.ShopStateClosed, loaded.State)

	_, err = svc.SetPartnerState(ctx, owner, "sideways")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.PartnerState(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
