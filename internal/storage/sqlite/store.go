// Package sqlite persists map records, tokens, lights, portal states, and
// fog-of-war areas behind database/sql with embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ostrand/battlemap-engine/internal/fog"
	"github.com/ostrand/battlemap-engine/internal/geometry"
	"github.com/ostrand/battlemap-engine/internal/light"
	"github.com/ostrand/battlemap-engine/internal/token"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// MapRecord is the stored identity of a map. The geometric content lives in
// the UVTT document at UVTTPath; play state references it by id.
type MapRecord struct {
	ID           string
	Name         string
	OwnerID      string
	UVTTPath     string
	AmbientLevel light.AmbientLevel
	FogEnabled   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store wraps the sqlite database.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	return s.sqlDB.Close()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// CreateMap inserts a map record.
func (s *Store) CreateMap(ctx context.Context, rec MapRecord) (MapRecord, error) {
	rec.CreatedAt = now()
	rec.UpdatedAt = rec.CreatedAt
	if rec.AmbientLevel == "" {
		rec.AmbientLevel = light.AmbientNone
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO maps (id, name, owner_id, uvtt_path, ambient_level, fog_enabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.OwnerID, rec.UVTTPath, string(rec.AmbientLevel),
		boolToInt(rec.FogEnabled), rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return MapRecord{}, fmt.Errorf("insert map: %w", err)
	}
	return rec, nil
}

// GetMap fetches a map record by id.
func (s *Store) GetMap(ctx context.Context, mapID string) (MapRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, owner_id, uvtt_path, ambient_level, fog_enabled, created_at, updated_at
FROM maps WHERE id = ?`, mapID)

	var rec MapRecord
	var ambient string
	var fogEnabled int
	var createdAt, updatedAt string
	err := row.Scan(&rec.ID, &rec.Name, &rec.OwnerID, &rec.UVTTPath, &ambient, &fogEnabled, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return MapRecord{}, ErrNotFound
	}
	if err != nil {
		return MapRecord{}, fmt.Errorf("get map: %w", err)
	}
	rec.AmbientLevel = light.AmbientLevel(ambient)
	rec.FogEnabled = fogEnabled != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec, nil
}

// DeleteMap removes a map; tokens, lights, portal states, and fog areas
// cascade with it.
func (s *Store) DeleteMap(ctx context.Context, mapID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM maps WHERE id = ?`, mapID)
	if err != nil {
		return fmt.Errorf("delete map: %w", err)
	}
	return requireAffected(res)
}

// SetFogEnabled flips the per-map fog flag.
func (s *Store) SetFogEnabled(ctx context.Context, mapID string, enabled bool) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE maps SET fog_enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), now().Format(time.RFC3339Nano), mapID)
	if err != nil {
		return fmt.Errorf("set fog enabled: %w", err)
	}
	return requireAffected(res)
}

// SetAmbientLevel updates the map-wide illumination floor.
func (s *Store) SetAmbientLevel(ctx context.Context, mapID string, level light.AmbientLevel) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE maps SET ambient_level = ?, updated_at = ? WHERE id = ?`,
		string(level), now().Format(time.RFC3339Nano), mapID)
	if err != nil {
		return fmt.Errorf("set ambient level: %w", err)
	}
	return requireAffected(res)
}

// SetPortalOpen records a portal's open/closed state for a map.
func (s *Store) SetPortalOpen(ctx context.Context, mapID, portalID string, open bool) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO portal_states (map_id, portal_id, open) VALUES (?, ?, ?)
ON CONFLICT (map_id, portal_id) DO UPDATE SET open = excluded.open`,
		mapID, portalID, boolToInt(open))
	if err != nil {
		return fmt.Errorf("set portal state: %w", err)
	}
	return nil
}

// PortalStates returns the persisted open/closed overrides for a map, keyed
// by portal id. Portals without a row keep their document-authored state.
func (s *Store) PortalStates(ctx context.Context, mapID string) (map[string]bool, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT portal_id, open FROM portal_states WHERE map_id = ?`, mapID)
	if err != nil {
		return nil, fmt.Errorf("list portal states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]bool)
	for rows.Next() {
		var id string
		var open int
		if err := rows.Scan(&id, &open); err != nil {
			return nil, fmt.Errorf("scan portal state: %w", err)
		}
		states[id] = open != 0
	}
	return states, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// regionJSON round-trips fog regions through the region column.
func regionJSON(r fog.Region) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}
	return string(data), nil
}

func parseRegion(data string) (fog.Region, error) {
	var r fog.Region
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return fog.Region{}, fmt.Errorf("decode region: %w", err)
	}
	return r, nil
}

var _ fog.Store = (*Store)(nil)

// InsertArea persists one revealed fog area.
func (s *Store) InsertArea(ctx context.Context, area fog.Area) error {
	region, err := regionJSON(area.Region)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO fog_areas (id, map_id, shape, region, created_at) VALUES (?, ?, ?, ?, ?)`,
		area.ID, area.MapID, string(area.Region.Shape), region, area.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert fog area: %w", err)
	}
	return nil
}

// DeleteArea removes one revealed area by id.
func (s *Store) DeleteArea(ctx context.Context, areaID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM fog_areas WHERE id = ?`, areaID)
	if err != nil {
		return fmt.Errorf("delete fog area: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fog.ErrNotFound
	}
	return nil
}

// DeleteAreasForMap clears a map's revealed set and reports the row count.
func (s *Store) DeleteAreasForMap(ctx context.Context, mapID string) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM fog_areas WHERE map_id = ?`, mapID)
	if err != nil {
		return 0, fmt.Errorf("delete fog areas: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// ListAreas returns a map's revealed areas, oldest first.
func (s *Store) ListAreas(ctx context.Context, mapID string) ([]fog.Area, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, map_id, region, created_at FROM fog_areas WHERE map_id = ? ORDER BY created_at, id`, mapID)
	if err != nil {
		return nil, fmt.Errorf("list fog areas: %w", err)
	}
	defer rows.Close()

	var areas []fog.Area
	for rows.Next() {
		var a fog.Area
		var region, createdAt string
		if err := rows.Scan(&a.ID, &a.MapID, &region, &createdAt); err != nil {
			return nil, fmt.Errorf("scan fog area: %w", err)
		}
		if a.Region, err = parseRegion(region); err != nil {
			return nil, err
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

// InsertLight persists a light source for a map.
func (s *Store) InsertLight(ctx context.Context, mapID string, src light.Source) error {
	ts := now().Format(time.RFC3339Nano)
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO lights (id, map_id, name, x, y, bright_radius_ft, dim_radius_ft, color, enabled, token_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, mapID, src.Name, src.Position.X, src.Position.Y,
		src.BrightRadiusFt, src.DimRadiusFt, src.Color, boolToInt(src.Enabled), src.TokenID, ts, ts)
	if err != nil {
		return fmt.Errorf("insert light: %w", err)
	}
	return nil
}

// ListLights returns a map's light sources.
func (s *Store) ListLights(ctx context.Context, mapID string) ([]light.Source, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, x, y, bright_radius_ft, dim_radius_ft, color, enabled, token_id
FROM lights WHERE map_id = ? ORDER BY created_at, id`, mapID)
	if err != nil {
		return nil, fmt.Errorf("list lights: %w", err)
	}
	defer rows.Close()

	var sources []light.Source
	for rows.Next() {
		var src light.Source
		var enabled int
		if err := rows.Scan(&src.ID, &src.Name, &src.Position.X, &src.Position.Y,
			&src.BrightRadiusFt, &src.DimRadiusFt, &src.Color, &enabled, &src.TokenID); err != nil {
			return nil, fmt.Errorf("scan light: %w", err)
		}
		src.Enabled = enabled != 0
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SetLightEnabled toggles a light on or off.
func (s *Store) SetLightEnabled(ctx context.Context, lightID string, enabled bool) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE lights SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), now().Format(time.RFC3339Nano), lightID)
	if err != nil {
		return fmt.Errorf("set light enabled: %w", err)
	}
	return requireAffected(res)
}

// MoveLight updates a light's position.
func (s *Store) MoveLight(ctx context.Context, lightID string, pos geometry.Point) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE lights SET x = ?, y = ?, updated_at = ? WHERE id = ?`,
		pos.X, pos.Y, now().Format(time.RFC3339Nano), lightID)
	if err != nil {
		return fmt.Errorf("move light: %w", err)
	}
	return requireAffected(res)
}

// DeleteLight removes a light source.
func (s *Store) DeleteLight(ctx context.Context, lightID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM lights WHERE id = ?`, lightID)
	if err != nil {
		return fmt.Errorf("delete light: %w", err)
	}
	return requireAffected(res)
}

// InsertToken persists a token placement.
func (s *Store) InsertToken(ctx context.Context, tok token.Token) error {
	ts := now().Format(time.RFC3339Nano)
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO tokens (id, map_id, x, y, size, vision, vision_range_ft, hidden, label, faction_color, character_ref, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tok.ID, tok.MapID, tok.Position.X, tok.Position.Y, string(tok.Size), string(tok.Vision),
		tok.VisionRangeFt, boolToInt(tok.Hidden), tok.Label, tok.FactionColor, tok.CharacterRef, ts, ts)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetToken fetches a token by id.
func (s *Store) GetToken(ctx context.Context, tokenID string) (token.Token, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, map_id, x, y, size, vision, vision_range_ft, hidden, label, faction_color, character_ref
FROM tokens WHERE id = ?`, tokenID)
	tok, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return token.Token{}, ErrNotFound
	}
	if err != nil {
		return token.Token{}, fmt.Errorf("get token: %w", err)
	}
	return tok, nil
}

// ListTokens returns a map's tokens.
func (s *Store) ListTokens(ctx context.Context, mapID string) ([]token.Token, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, map_id, x, y, size, vision, vision_range_ft, hidden, label, faction_color, character_ref
FROM tokens WHERE map_id = ? ORDER BY created_at, id`, mapID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []token.Token
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

// UpdateTokenPosition moves a token.
func (s *Store) UpdateTokenPosition(ctx context.Context, tokenID string, pos geometry.Point) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE tokens SET x = ?, y = ?, updated_at = ? WHERE id = ?`,
		pos.X, pos.Y, now().Format(time.RFC3339Nano), tokenID)
	if err != nil {
		return fmt.Errorf("update token position: %w", err)
	}
	return requireAffected(res)
}

// SetTokenHidden flips the DM-only visibility flag.
func (s *Store) SetTokenHidden(ctx context.Context, tokenID string, hidden bool) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE tokens SET hidden = ?, updated_at = ? WHERE id = ?`,
		boolToInt(hidden), now().Format(time.RFC3339Nano), tokenID)
	if err != nil {
		return fmt.Errorf("set token hidden: %w", err)
	}
	return requireAffected(res)
}

// DeleteToken removes a token from its map.
func (s *Store) DeleteToken(ctx context.Context, tokenID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, tokenID)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (token.Token, error) {
	var tok token.Token
	var size, vision string
	var hidden int
	err := row.Scan(&tok.ID, &tok.MapID, &tok.Position.X, &tok.Position.Y, &size, &vision,
		&tok.VisionRangeFt, &hidden, &tok.Label, &tok.FactionColor, &tok.CharacterRef)
	if err != nil {
		return token.Token{}, err
	}
	tok.Size = token.Size(size)
	tok.Vision = token.Vision(vision)
	tok.Hidden = hidden != 0
	return tok, nil
}
