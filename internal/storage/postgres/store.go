// Package postgres implements the registry store on PostgreSQL with pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smoky1337/PfotenRegister/internal/config"
	"github.com/smoky1337/PfotenRegister/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the query surface shared by the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Store is a core.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// Connect opens and pings a pool configured from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate creates the registry tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) ExistingGuestNumbers(ctx context.Context, numbers []string) ([]string, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT number FROM guests WHERE number = ANY($1)`, numbers)
	if err != nil {
		return nil, fmt.Errorf("query guest numbers: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) ExistingNames(ctx context.Context, names []core.NameKey) ([]core.NameKey, error) {
	if len(names) == 0 {
		return nil, nil
	}
	first := make([]string, len(names))
	last := make([]string, len(names))
	for i, k := range names {
		first[i], last[i] = k.FirstName, k.LastName
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT g.firstname, g.lastname
		FROM guests g
		JOIN unnest($1::text[], $2::text[]) AS k(firstname, lastname)
		  ON g.firstname = k.firstname AND g.lastname = k.lastname`,
		first, last)
	if err != nil {
		return nil, fmt.Errorf("query guest names: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.NameKey, error) {
		var k core.NameKey
		err := row.Scan(&k.FirstName, &k.LastName)
		return k, err
	})
}

func (s *Store) ExistingPersons(ctx context.Context, persons []core.PersonKey) ([]core.PersonKey, error) {
	if len(persons) == 0 {
		return nil, nil
	}
	first := make([]string, len(persons))
	last := make([]string, len(persons))
	addr := make([]string, len(persons))
	for i, k := range persons {
		first[i], last[i], addr[i] = k.FirstName, k.LastName, k.Address
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT g.firstname, g.lastname, COALESCE(g.address, '')
		FROM guests g
		JOIN unnest($1::text[], $2::text[], $3::text[]) AS k(firstname, lastname, address)
		  ON g.firstname = k.firstname AND g.lastname = k.lastname
		 AND COALESCE(g.address, '') = k.address`,
		first, last, addr)
	if err != nil {
		return nil, fmt.Errorf("query guest persons: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.PersonKey, error) {
		var k core.PersonKey
		err := row.Scan(&k.FirstName, &k.LastName, &k.Address)
		return k, err
	})
}

func (s *Store) GuestCodeExists(ctx context.Context, code string) (bool, error) {
	return guestCodeExists(ctx, s.pool, code)
}

func guestCodeExists(ctx context.Context, db DBTX, code string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM guests WHERE id = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query guest id: %w", err)
	}
	return exists, nil
}

func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) GuestNumbersWithAffixes(ctx context.Context, prefix, suffix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT number FROM guests
		WHERE number LIKE $1 ESCAPE '\' AND length(number) >= $2
		ORDER BY number DESC`,
		likePattern(prefix, suffix), affixLength(prefix, suffix))
	if err != nil {
		return nil, fmt.Errorf("query guest numbers: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// NextCounter advances the counter in a single statement, so concurrent
// callers serialize on the row lock.
func (s *Store) NextCounter(ctx context.Context, scope string, floor int) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO number_counters (scope, value) VALUES ($1, $2::int + 1)
		ON CONFLICT (scope) DO UPDATE
		SET value = GREATEST(number_counters.value, $2::int) + 1
		RETURNING value`,
		scope, floor).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("advance counter %s: %w", scope, err)
	}
	return next, nil
}

const guestColumns = `
	g.id, g.number, g.firstname, g.lastname, g.address, g.zip, g.city, g.phone,
	g.mobile, g.email, g.birth_date, g.gender, g.member_since, g.member_until,
	g.status, g.indigence, g.indigent_until, g.documents, g.notes,
	g.created_on, g.updated_on,
	r.guest_id IS NOT NULL, r.name, r.phone, r.email, r.address`

func (s *Store) StreamGuests(ctx context.Context, fn func(core.Guest) error) error {
	rows, err := s.pool.Query(ctx, `SELECT `+guestColumns+`
		FROM guests g
		LEFT JOIN representatives r ON r.guest_id = g.id
		ORDER BY g.created_on, g.number, g.id`)
	if err != nil {
		return fmt.Errorf("query guests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return fmt.Errorf("scan guest: %w", err)
		}
		if err := fn(g); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanGuest(row pgx.Row) (core.Guest, error) {
	var g core.Guest
	var address, zip, city, phone, mobile, email pgtype.Text
	var indigence, documents, notes pgtype.Text
	var birth, since, until, indigentUntil, created, updated pgtype.Date
	var hasRep bool
	var repName, repPhone, repEmail, repAddress pgtype.Text
	err := row.Scan(
		&g.ID, &g.Number, &g.FirstName, &g.LastName, &address, &zip, &city, &phone,
		&mobile, &email, &birth, &g.Gender, &since, &until,
		&g.Status, &indigence, &indigentUntil, &documents, &notes,
		&created, &updated,
		&hasRep, &repName, &repPhone, &repEmail, &repAddress,
	)
	if err != nil {
		return core.Guest{}, err
	}

	g.Address, g.Zip, g.City = fromText(address), fromText(zip), fromText(city)
	g.Phone, g.Mobile, g.Email = fromText(phone), fromText(mobile), fromText(email)
	g.Indigence, g.Documents, g.Notes = fromText(indigence), fromText(documents), fromText(notes)
	g.BirthDate, g.MemberUntil, g.IndigentUntil = fromDate(birth), fromDate(until), fromDate(indigentUntil)
	g.MemberSince, g.CreatedOn, g.UpdatedOn = since.Time, created.Time, updated.Time
	if hasRep {
		g.Representative = &core.Representative{
			Name:    fromText(repName),
			Phone:   fromText(repPhone),
			Email:   fromText(repEmail),
			Address: fromText(repAddress),
		}
	}
	return g, nil
}

func (s *Store) StreamAnimals(ctx context.Context, fn func(core.AnimalExport) error) error {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.guest_id, g.number, a.species, a.breed, a.name, a.sex, a.color,
		       a.castrated, a.identification, a.birth_date, a.weight_or_size,
		       a.illnesses, a.intolerances, a.food_type, a.complete_care, a.last_seen,
		       a.veterinarian, a.food_amount_note, a.notes, a.active,
		       a.tax_notice_until, a.created_on, a.updated_on
		FROM animals a
		JOIN guests g ON g.id = a.guest_id
		ORDER BY a.id`)
	if err != nil {
		return fmt.Errorf("query animals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a core.AnimalExport
		var species, breed, name, sex, color, castrated, ident pgtype.Text
		var weight, ill, intol, food, care, vet, amount, notes pgtype.Text
		var birth, lastSeen, taxUntil, created, updated pgtype.Date
		err := rows.Scan(
			&a.ID, &a.GuestID, &a.GuestNumber, &species, &breed, &name, &sex, &color,
			&castrated, &ident, &birth, &weight,
			&ill, &intol, &food, &care, &lastSeen,
			&vet, &amount, &notes, &a.Active,
			&taxUntil, &created, &updated,
		)
		if err != nil {
			return fmt.Errorf("scan animal: %w", err)
		}
		a.Species, a.Breed, a.Name = fromText(species), fromText(breed), fromText(name)
		a.Sex, a.Color, a.Castrated = fromText(sex), fromText(color), fromText(castrated)
		a.Identification, a.WeightOrSize = fromText(ident), fromText(weight)
		a.Illnesses, a.Intolerances, a.FoodType = fromText(ill), fromText(intol), fromText(food)
		a.CompleteCare, a.Veterinarian = fromText(care), fromText(vet)
		a.FoodAmountNote, a.Notes = fromText(amount), fromText(notes)
		a.BirthDate, a.LastSeen, a.TaxNoticeUntil = fromDate(birth), fromDate(lastSeen), fromDate(taxUntil)
		a.CreatedOn, a.UpdatedOn = created.Time, updated.Time

		if err := fn(a); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) ListGuests(ctx context.Context) ([]core.GuestSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, number, firstname, lastname, status
		FROM guests
		ORDER BY lastname, firstname, number`)
	if err != nil {
		return nil, fmt.Errorf("query guest list: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[core.GuestSummary])
}

func (s *Store) UpsertSettings(ctx context.Context, settings []core.Setting, overwrite bool) (int, error) {
	query := `INSERT INTO settings (key, value, description) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`
	if overwrite {
		query = `INSERT INTO settings (key, value, description) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description`
	}

	written := 0
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, st := range settings {
			tag, err := tx.Exec(ctx, query, st.Key, st.Value, toText(st.Description))
			if err != nil {
				return fmt.Errorf("upsert setting %s: %w", st.Key, err)
			}
			written += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// truncatable lists the tables Truncate accepts.
var truncatable = map[string]bool{
	"guests": true, "representatives": true, "animals": true, "number_counters": true, "settings": true,
}

// Truncate empties the named tables in a single statement and restarts
// their sequences.
func (s *Store) Truncate(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	idents := make([]string, 0, len(tables))
	for _, t := range tables {
		if !truncatable[t] {
			return fmt.Errorf("truncate %q: unknown table", t)
		}
		idents = append(idents, pgx.Identifier{t}.Sanitize())
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE "+strings.Join(idents, ", ")+" RESTART IDENTITY"); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

// WithTx runs fn in a transaction. The transaction is rolled back unless fn
// returns nil and the commit succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx core.ImportTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&importTx{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// importTx writes import batches with COPY.
type importTx struct {
	db DBTX
}

func (t *importTx) GuestCodeExists(ctx context.Context, code string) (bool, error) {
	return guestCodeExists(ctx, t.db, code)
}

var (
	guestCopyColumns = []string{
		"id", "number", "firstname", "lastname", "address", "zip", "city", "phone",
		"mobile", "email", "birth_date", "gender", "member_since", "member_until",
		"status", "indigence", "indigent_until", "documents", "notes",
		"created_on", "updated_on",
	}
	representativeCopyColumns = []string{"guest_id", "name", "phone", "email", "address"}
	animalCopyColumns         = []string{
		"guest_id", "species", "breed", "name", "sex", "color", "castrated",
		"identification", "birth_date", "weight_or_size", "illnesses", "intolerances",
		"food_type", "complete_care", "last_seen", "veterinarian", "food_amount_note",
		"notes", "active", "tax_notice_until", "created_on", "updated_on",
	}
)

func (t *importTx) InsertGuests(ctx context.Context, guests []core.Guest) error {
	_, err := t.db.CopyFrom(ctx, pgx.Identifier{"guests"}, guestCopyColumns,
		pgx.CopyFromSlice(len(guests), func(i int) ([]any, error) {
			g := guests[i]
			return []any{
				g.ID, g.Number, g.FirstName, g.LastName, toText(g.Address), toText(g.Zip),
				toText(g.City), toText(g.Phone), toText(g.Mobile), toText(g.Email),
				toDate(g.BirthDate), g.Gender, toRequiredDate(g.MemberSince), toDate(g.MemberUntil),
				g.Status, toText(g.Indigence), toDate(g.IndigentUntil), toText(g.Documents),
				toText(g.Notes), toRequiredDate(g.CreatedOn), toRequiredDate(g.UpdatedOn),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy guests: %w", err)
	}

	var reps [][]any
	for _, g := range guests {
		if g.Representative == nil {
			continue
		}
		r := g.Representative
		reps = append(reps, []any{g.ID, toText(r.Name), toText(r.Phone), toText(r.Email), toText(r.Address)})
	}
	if len(reps) == 0 {
		return nil
	}
	if _, err := t.db.CopyFrom(ctx, pgx.Identifier{"representatives"}, representativeCopyColumns,
		pgx.CopyFromRows(reps)); err != nil {
		return fmt.Errorf("copy representatives: %w", err)
	}
	return nil
}

func (t *importTx) InsertAnimals(ctx context.Context, animals []core.Animal) error {
	_, err := t.db.CopyFrom(ctx, pgx.Identifier{"animals"}, animalCopyColumns,
		pgx.CopyFromSlice(len(animals), func(i int) ([]any, error) {
			a := animals[i]
			return []any{
				a.GuestID, toText(a.Species), toText(a.Breed), toText(a.Name), toText(a.Sex),
				toText(a.Color), toText(a.Castrated), toText(a.Identification), toDate(a.BirthDate),
				toText(a.WeightOrSize), toText(a.Illnesses), toText(a.Intolerances),
				toText(a.FoodType), toText(a.CompleteCare), toDate(a.LastSeen),
				toText(a.Veterinarian), toText(a.FoodAmountNote), toText(a.Notes), a.Active,
				toDate(a.TaxNoticeUntil), toRequiredDate(a.CreatedOn), toRequiredDate(a.UpdatedOn),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy animals: %w", err)
	}
	return nil
}
