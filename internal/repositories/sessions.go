package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nkoorts/vibesort/internal/shared"
	"golang.org/x/oauth2"
)

// SessionRepository persists sessions in the sessions table.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session for the given token and returns its generated id.
func (r *SessionRepository) Create(token *oauth2.Token) (string, error) {
	if token == nil || token.AccessToken == "" {
		return "", fmt.Errorf("%w: token has no access token", shared.ErrInvalidInput)
	}

	id := shared.GenerateID()
	now := time.Now().UTC()

	query := `
		INSERT INTO sessions (id, access_token, refresh_token, token_type, expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, id, token.AccessToken, token.RefreshToken, tokenType(token), token.Expiry, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	return id, nil
}

// Get retrieves the token stored for a session id.
func (r *SessionRepository) Get(id string) (*oauth2.Token, error) {
	query := `
		SELECT access_token, refresh_token, token_type, expiry
		FROM sessions
		WHERE id = ?
	`

	token := oauth2.Token{}
	var expiry sql.NullTime
	err := r.db.QueryRow(query, id).Scan(&token.AccessToken, &token.RefreshToken, &token.TokenType, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if expiry.Valid {
		token.Expiry = expiry.Time
	}
	return &token, nil
}

// Update replaces the token stored for a session id, keeping the previous
// refresh token when the new token omits one.
func (r *SessionRepository) Update(id string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: token has no access token", shared.ErrInvalidInput)
	}

	refresh := token.RefreshToken
	if refresh == "" {
		current, err := r.Get(id)
		if err != nil {
			return err
		}
		refresh = current.RefreshToken
	}

	query := `
		UPDATE sessions
		SET access_token = ?, refresh_token = ?, token_type = ?, expiry = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, token.AccessToken, refresh, tokenType(token), token.Expiry, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (r *SessionRepository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose tokens expired before the cutoff and
// that carry no refresh token to recover with.
func (r *SessionRepository) DeleteExpired(cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE refresh_token = '' AND expiry IS NOT NULL AND expiry < ?
	`

	result, err := r.db.Exec(query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return result.RowsAffected()
}

func tokenType(token *oauth2.Token) string {
	if token.TokenType == "" {
		return "Bearer"
	}
	return token.TokenType
}
