package mass

import (
	"context"
	"testing"

	"wecom_ops/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedDirectory(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	seedContacts(t, gdb,
		contactSeed{id: "wm_a", name: "Alice VIP", unionID: "u_a", owner: "sales1", store: "s1", brand: "b1", tags: []string{"vip"}},
		contactSeed{id: "wm_b", name: "Bob", unionID: "u_b", owner: "sales2", store: "s1", brand: "b2"},
		contactSeed{id: "wm_c", name: "Carol", owner: "sales1", store: "s2", brand: "b1", tags: []string{"vip", "new"}},
		contactSeed{id: "wm_d", name: "Dave VIP", unionID: "u_d", owner: "sales3", store: "s3", brand: "b1"},
	)
	// 同一联系人被两个跟进人添加
	seedContacts(t, gdb, contactSeed{id: "wm_a", name: "Alice VIP", unionID: "u_a", owner: "sales2", store: "s1", brand: "b1"})
}

func seedUpload(t *testing.T, gdb *gorm.DB, token string, mobiles map[string]string) int64 {
	t.Helper()
	up := model.MobileUpload{UploadToken: token, Total: len(mobiles)}
	require.NoError(t, gdb.Create(&up).Error)
	for m, union := range mobiles {
		require.NoError(t, gdb.Create(&model.MobileUploadItem{UploadID: up.ID, MobileStd: m}).Error)
		if union != "" {
			require.NoError(t, gdb.Create(&model.ThirdPartyUserImport{UserName: m, UnionID: union}).Error)
		}
	}
	return up.ID
}

func TestContactStore_All(t *testing.T) {
	gdb := dbtestWithDirectory(t)
	store := NewContactStore(gdb)

	ids, err := store.AllRecipients(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"wm_a", "wm_b", "wm_c", "wm_d"}, ids)

	ids, err = store.AllRecipients(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"wm_a", "wm_b"}, ids)
}

func TestContactStore_Tags(t *testing.T) {
	store := NewContactStore(dbtestWithDirectory(t))

	ids, err := store.RecipientsByTags(context.Background(), []string{"vip", "new"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"wm_a", "wm_c"}, ids)
}

func TestContactStore_Filter(t *testing.T) {
	store := NewContactStore(dbtestWithDirectory(t))
	yes, no := true, false

	tests := []struct {
		name string
		f    Filters
		want []string
	}{
		{"keyword", Filters{Q: "VIP"}, []string{"wm_a", "wm_d"}},
		{"owner", Filters{OwnerUserIDs: StringList{"sales1"}}, []string{"wm_a", "wm_c"}},
		{"store and brand", Filters{StoreIDs: StringList{"s1", "s2"}, BrandIDs: StringList{"b1"}}, []string{"wm_a", "wm_c"}},
		{"tag", Filters{TagIDs: StringList{"new"}}, []string{"wm_c"}},
		{"has unionid", Filters{HasUnionID: &yes}, []string{"wm_a", "wm_b", "wm_d"}},
		{"no unionid", Filters{HasUnionID: &no}, []string{"wm_c"}},
		{"no predicate", Filters{}, []string{"wm_a", "wm_b", "wm_c", "wm_d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := store.RecipientsByFilter(context.Background(), tt.f, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestContactStore_Upload(t *testing.T) {
	gdb := dbtestWithDirectory(t)
	uploadID := seedUpload(t, gdb, "tok-1", map[string]string{
		"13800000001": "u_a",
		"13800000002": "u_d",
		"13800000003": "",
		"13800000004": "u_nobody",
	})
	store := NewContactStore(gdb)
	ctx := context.Background()

	ids, err := store.RecipientsByUpload(ctx, uploadID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"wm_a", "wm_d"}, ids)

	id, err := store.UploadIDByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, uploadID, id)

	_, err = store.UploadIDByToken(ctx, "nope")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestContactStore_MixedThroughResolver(t *testing.T) {
	gdb := dbtestWithDirectory(t)
	uploadID := seedUpload(t, gdb, "tok-2", map[string]string{
		"13800000001": "u_a",
		"13800000002": "u_b",
		"13800000005": "u_d",
	})
	r := NewResolver(NewContactStore(gdb), 100)

	ids, err := r.Resolve(context.Background(), Mixed{Filters: Filters{BrandIDs: StringList{"b1"}}, UploadID: uploadID})
	require.NoError(t, err)
	assert.Equal(t, []string{"wm_a", "wm_d"}, ids)
}

func dbtestWithDirectory(t *testing.T) *gorm.DB {
	t.Helper()
	_, gdb := newTestService(t)
	seedDirectory(t, gdb)
	return gdb
}
