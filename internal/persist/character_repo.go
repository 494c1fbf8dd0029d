package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a character row does not exist.
var ErrNotFound = errors.New("character not found")

// CharacterRow mirrors one row of the characters table.
type CharacterRow struct {
	ID     int32
	Name   string
	Level  int32
	Exp    int64
	Gold   int64
	HP     int32
	MaxHP  int32
	Weapon int32
	Armor  int32
	X      int32
	Y      int32
}

type CharacterRepo struct {
	db *DB
}

func NewCharacterRepo(db *DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

// LoadByName fetches a character by name.
func (r *CharacterRepo) LoadByName(ctx context.Context, name string) (*CharacterRow, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, level, exp, gold, hp, max_hp, weapon, armor, x, y
		 FROM characters
		 WHERE name = $1`, name,
	)
	var c CharacterRow
	err := row.Scan(&c.ID, &c.Name, &c.Level, &c.Exp, &c.Gold,
		&c.HP, &c.MaxHP, &c.Weapon, &c.Armor, &c.X, &c.Y)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load character %s: %w", name, err)
	}
	return &c, nil
}

// Create inserts a new character and returns its row id.
func (r *CharacterRepo) Create(ctx context.Context, c *CharacterRow) (int32, error) {
	row := r.db.Pool.QueryRow(ctx,
		`INSERT INTO characters (name, level, exp, gold, hp, max_hp, weapon, armor, x, y)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		c.Name, c.Level, c.Exp, c.Gold, c.HP, c.MaxHP, c.Weapon, c.Armor, c.X, c.Y,
	)
	var id int32
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("create character %s: %w", c.Name, err)
	}
	return id, nil
}

// Save writes a character's mutable state back by name.
func (r *CharacterRepo) Save(ctx context.Context, c *CharacterRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE characters
		 SET level = $2, exp = $3, gold = $4, hp = $5, max_hp = $6,
		     weapon = $7, armor = $8, x = $9, y = $10, updated_at = now()
		 WHERE name = $1`,
		c.Name, c.Level, c.Exp, c.Gold, c.HP, c.MaxHP, c.Weapon, c.Armor, c.X, c.Y,
	)
	if err != nil {
		return fmt.Errorf("save character %s: %w", c.Name, err)
	}
	return nil
}

// SaveBatch writes many characters in one transaction. Used by the periodic
// dirty-player sweep.
func (r *CharacterRepo) SaveBatch(ctx context.Context, rows []*CharacterRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range rows {
		batch.Queue(
			`UPDATE characters
			 SET level = $2, exp = $3, gold = $4, hp = $5, max_hp = $6,
			     weapon = $7, armor = $8, x = $9, y = $10, updated_at = now()
			 WHERE name = $1`,
			c.Name, c.Level, c.Exp, c.Gold, c.HP, c.MaxHP, c.Weapon, c.Armor, c.X, c.Y,
		)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch save characters: %w", err)
		}
	}
	return nil
}
