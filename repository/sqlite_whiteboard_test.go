package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/tahta/database"
	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
)

// testDB, t.TempDir altında gerçek bir SQLite veritabanı açar ve
// migration'ları uygular.
func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "tahta_test.db"), database.Migrations())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createUser(t *testing.T, db *database.DB, username string) *models.User {
	t.Helper()
	repo := NewSQLiteUserRepo(db.Conn)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	return user
}

func createBoard(t *testing.T, repo WhiteboardRepository, ownerID, title string) *models.Whiteboard {
	t.Helper()
	board := &models.Whiteboard{OwnerID: ownerID, Title: title}
	require.NoError(t, repo.Create(context.Background(), board))
	require.NotEmpty(t, board.ID)
	return board
}

func TestWhiteboardRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		db := testDB(t)
		owner := createUser(t, db, "owner")
		repo := NewSQLiteWhiteboardRepo(db.Conn)

		board := createBoard(t, repo, owner.ID, "Sprint Planning")

		got, err := repo.GetByID(ctx, board.ID)
		require.NoError(t, err)
		assert.Equal(t, "Sprint Planning", got.Title)
		assert.Equal(t, owner.ID, got.OwnerID)
		assert.JSONEq(t, `{"records":[]}`, string(got.Document))
	})

	t.Run("get missing board", func(t *testing.T) {
		db := testDB(t)
		repo := NewSQLiteWhiteboardRepo(db.Conn)

		_, err := repo.GetByID(ctx, "deadbeef")
		assert.ErrorIs(t, err, pkg.ErrNotFound)
	})

	t.Run("save and reload document", func(t *testing.T) {
		db := testDB(t)
		owner := createUser(t, db, "owner")
		repo := NewSQLiteWhiteboardRepo(db.Conn)
		board := createBoard(t, repo, owner.ID, "Board")

		doc := `{"records":[{"id":"a","type":"rect"}]}`
		require.NoError(t, repo.SaveDocument(ctx, board.ID, []byte(doc)))

		got, err := repo.GetByID(ctx, board.ID)
		require.NoError(t, err)
		assert.JSONEq(t, doc, string(got.Document))
	})

	t.Run("update title on missing board", func(t *testing.T) {
		db := testDB(t)
		repo := NewSQLiteWhiteboardRepo(db.Conn)
		assert.ErrorIs(t, repo.UpdateTitle(ctx, "deadbeef", "X"), pkg.ErrNotFound)
	})

	t.Run("list accessible covers owned and shared", func(t *testing.T) {
		db := testDB(t)
		owner := createUser(t, db, "owner")
		guest := createUser(t, db, "guest")
		repo := NewSQLiteWhiteboardRepo(db.Conn)

		owned := createBoard(t, repo, guest.ID, "Mine")
		shared := createBoard(t, repo, owner.ID, "Theirs")
		createBoard(t, repo, owner.ID, "Private")

		require.NoError(t, repo.CreateShare(ctx, &models.WhiteboardShare{
			WhiteboardID: shared.ID,
			UserID:       guest.ID,
			Role:         models.ShareRoleEditor,
		}))

		boards, err := repo.ListAccessible(ctx, guest.ID)
		require.NoError(t, err)
		require.Len(t, boards, 2)

		ids := []string{boards[0].ID, boards[1].ID}
		assert.Contains(t, ids, owned.ID)
		assert.Contains(t, ids, shared.ID)
		// Liste görünümünde doküman taşınmaz
		assert.Empty(t, boards[0].Document)
	})

	t.Run("has access", func(t *testing.T) {
		db := testDB(t)
		owner := createUser(t, db, "owner")
		guest := createUser(t, db, "guest")
		stranger := createUser(t, db, "stranger")
		repo := NewSQLiteWhiteboardRepo(db.Conn)
		board := createBoard(t, repo, owner.ID, "Board")

		require.NoError(t, repo.CreateShare(ctx, &models.WhiteboardShare{
			WhiteboardID: board.ID,
			UserID:       guest.ID,
			Role:         models.ShareRoleEditor,
		}))

		for _, tc := range []struct {
			userID string
			want   bool
		}{
			{owner.ID, true},
			{guest.ID, true},
			{stranger.ID, false},
		} {
			got, err := repo.HasAccess(ctx, board.ID, tc.userID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, "user %s", tc.userID)
		}
	})

	t.Run("duplicate share conflicts", func(t *testing.T) {
		db := testDB(t)
		owner := createUser(t, db, "owner")
		guest := createUser(t, db, "guest")
		repo := NewSQLiteWhiteboardRepo(db.Conn)
		board := createBoard(t, repo, owner.ID, "Board")

		share := &models.WhiteboardShare{WhiteboardID: board.ID, UserID: guest.ID, Role: models.ShareRoleViewer}
		require.NoError(t, repo.CreateShare(ctx, share))

		err := repo.CreateShare(ctx, &models.WhiteboardShare{
			WhiteboardID: board.ID, UserID: guest.ID, Role: models.ShareRoleViewer,
		})
		assert.ErrorIs(t, err, pkg.ErrAlreadyExists)
	})

	t.Run("delete share revokes access", func(t *testing.T) {
		db := testDB(t)
		owner := createUser(t, db, "owner")
		guest := createUser(t, db, "guest")
		repo := NewSQLiteWhiteboardRepo(db.Conn)
		board := createBoard(t, repo, owner.ID, "Board")

		require.NoError(t, repo.CreateShare(ctx, &models.WhiteboardShare{
			WhiteboardID: board.ID, UserID: guest.ID, Role: models.ShareRoleEditor,
		}))
		require.NoError(t, repo.DeleteShare(ctx, board.ID, guest.ID))

		got, err := repo.HasAccess(ctx, board.ID, guest.ID)
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("list shares joins profile name", func(t *testing.T) {
		db := testDB(t)
		owner := createUser(t, db, "owner")
		guest := createUser(t, db, "guest")
		repo := NewSQLiteWhiteboardRepo(db.Conn)
		profileRepo := NewSQLiteProfileRepo(db.Conn)
		board := createBoard(t, repo, owner.ID, "Board")

		require.NoError(t, profileRepo.Upsert(ctx, &models.Profile{UserID: guest.ID, Name: "Guest Display"}))
		require.NoError(t, repo.CreateShare(ctx, &models.WhiteboardShare{
			WhiteboardID: board.ID, UserID: guest.ID, Role: models.ShareRoleEditor,
		}))

		shares, err := repo.ListShares(ctx, board.ID)
		require.NoError(t, err)
		require.Len(t, shares, 1)
		assert.Equal(t, "guest", shares[0].Username)
		assert.Equal(t, "Guest Display", shares[0].Name)
	})

	t.Run("delete board", func(t *testing.T) {
		db := testDB(t)
		owner := createUser(t, db, "owner")
		repo := NewSQLiteWhiteboardRepo(db.Conn)
		board := createBoard(t, repo, owner.ID, "Board")

		require.NoError(t, repo.Delete(ctx, board.ID))
		_, err := repo.GetByID(ctx, board.ID)
		assert.ErrorIs(t, err, pkg.ErrNotFound)

		assert.ErrorIs(t, repo.Delete(ctx, board.ID), pkg.ErrNotFound)
	})
}

func TestProfileRepoUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("insert then conflict keeps original", func(t *testing.T) {
		db := testDB(t)
		user := createUser(t, db, "ada")
		repo := NewSQLiteProfileRepo(db.Conn)

		require.NoError(t, repo.Upsert(ctx, &models.Profile{UserID: user.ID, Name: "Ada"}))
		require.NoError(t, repo.Upsert(ctx, &models.Profile{UserID: user.ID, Name: "Overwrite Attempt"}))

		got, err := repo.GetByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ada", got.Name)
	})

	t.Run("missing profile", func(t *testing.T) {
		db := testDB(t)
		repo := NewSQLiteProfileRepo(db.Conn)
		_, err := repo.GetByUserID(ctx, "nobody")
		assert.ErrorIs(t, err, pkg.ErrNotFound)
	})
}
