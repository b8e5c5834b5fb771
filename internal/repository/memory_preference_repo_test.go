package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hitoshi/newshub/internal/model"
)

func TestMemoryPreferenceRepo_LoadMissing_ReturnsNil(t *testing.T) {
	repo := NewMemoryPreferenceRepo()

	pref, err := repo.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pref != nil {
		t.Errorf("expected nil, got %+v", pref)
	}
}

func TestMemoryPreferenceRepo_SaveThenLoad_RoundTrip(t *testing.T) {
	repo := NewMemoryPreferenceRepo()
	ctx := context.Background()

	want := model.UserPreference{
		PreferredSources:  []model.ProviderID{model.ProviderGuardian, model.ProviderNYT},
		PreferredCategory: "technology",
	}
	if err := repo.Save(ctx, "client-1", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Load(ctx, "client-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected preference, got nil")
	}
	if model.JoinSources(got.PreferredSources) != "guardian,nyt" {
		t.Errorf("PreferredSources = %v", got.PreferredSources)
	}
	if got.PreferredCategory != "technology" {
		t.Errorf("PreferredCategory = %q, want %q", got.PreferredCategory, "technology")
	}
}

func TestMemoryPreferenceRepo_Save_Overwrites(t *testing.T) {
	repo := NewMemoryPreferenceRepo()
	ctx := context.Background()

	repo.Save(ctx, "client-1", model.UserPreference{PreferredCategory: "sports"})
	repo.Save(ctx, "client-1", model.UserPreference{PreferredCategory: "health"})

	got, _ := repo.Load(ctx, "client-1")
	if got.PreferredCategory != "health" {
		t.Errorf("PreferredCategory = %q, want %q", got.PreferredCategory, "health")
	}
}

func TestMemoryPreferenceRepo_IsolatesStoredSlices(t *testing.T) {
	repo := NewMemoryPreferenceRepo()
	ctx := context.Background()

	sources := []model.ProviderID{model.ProviderNewsAPI}
	repo.Save(ctx, "client-1", model.UserPreference{PreferredSources: sources})

	// 呼び出し元のスライス変更が保存内容に影響しないこと
	sources[0] = model.ProviderNYT

	got, _ := repo.Load(ctx, "client-1")
	if got.PreferredSources[0] != model.ProviderNewsAPI {
		t.Errorf("stored slice was mutated: %v", got.PreferredSources)
	}

	// 取得結果の変更も保存内容に影響しないこと
	got.PreferredSources[0] = model.ProviderGuardian
	again, _ := repo.Load(ctx, "client-1")
	if again.PreferredSources[0] != model.ProviderNewsAPI {
		t.Errorf("stored slice was mutated via Load result: %v", again.PreferredSources)
	}
}

func TestMemoryPreferenceRepo_Delete(t *testing.T) {
	repo := NewMemoryPreferenceRepo()
	ctx := context.Background()

	repo.Save(ctx, "client-1", model.UserPreference{PreferredCategory: "science"})
	if err := repo.Delete(ctx, "client-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, _ := repo.Load(ctx, "client-1")
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}

	// 存在しないクライアントの削除もエラーにならない
	if err := repo.Delete(ctx, "client-1"); err != nil {
		t.Errorf("Delete of missing client should not fail: %v", err)
	}
}

func TestMemoryPreferenceRepo_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryPreferenceRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("client-%d", i%5)
			repo.Save(ctx, id, model.UserPreference{PreferredSources: []model.ProviderID{model.ProviderNYT}})
			repo.Load(ctx, id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		got, _ := repo.Load(ctx, fmt.Sprintf("client-%d", i))
		if got == nil {
			t.Errorf("client-%d: expected preference", i)
		}
	}
}
