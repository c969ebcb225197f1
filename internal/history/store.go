// Package history persists completed analyses. Records are atomic: an
// analysis row and its ingredient rows are always written in one
// transaction, so a record is never half-visible.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapcal/snapcal/pkg/models"
)

var ErrNotFound = errors.New("analysis not found")

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL,
    meal_name TEXT NOT NULL,
    image_data BLOB,
    total_calories INTEGER NOT NULL,
    confidence REAL NOT NULL,
    total_protein REAL NOT NULL,
    total_carbs REAL NOT NULL,
    total_fat REAL NOT NULL,
    prompt_tokens INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ingredients (
    id TEXT PRIMARY KEY,
    analysis_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    quantity REAL NOT NULL,
    unit TEXT NOT NULL,
    calories INTEGER NOT NULL,
    protein REAL NOT NULL,
    carbs REAL NOT NULL,
    fat REAL NOT NULL,
    FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_ingredients_analysis_id ON ingredients(analysis_id);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

type Store struct {
	db *sql.DB
}

func NewStore() (*Store, error) {
	dbPath, err := defaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(dbPath)
}

func NewStoreWithPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

func defaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".snapcal", "meals.db"), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create writes a record and its ingredients in one transaction.
func (s *Store) Create(ctx context.Context, a *models.FoodAnalysis) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (id, created_at, meal_name, image_data, total_calories, confidence,
		                       total_protein, total_carbs, total_fat, prompt_tokens, completion_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CreatedAt.UTC(), a.MealName, a.ImageData, a.TotalCalories, a.Confidence,
		a.Totals.Protein, a.Totals.Carbs, a.Totals.Fat, a.PromptTokens, a.CompletionTokens)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	if err := insertIngredients(ctx, tx, a); err != nil {
		return err
	}

	return tx.Commit()
}

// Update replaces a record wholesale, ingredients included.
func (s *Store) Update(ctx context.Context, a *models.FoodAnalysis) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE analyses SET meal_name = ?, image_data = ?, total_calories = ?, confidence = ?,
		        total_protein = ?, total_carbs = ?, total_fat = ?, prompt_tokens = ?, completion_tokens = ?
		 WHERE id = ?`,
		a.MealName, a.ImageData, a.TotalCalories, a.Confidence,
		a.Totals.Protein, a.Totals.Carbs, a.Totals.Fat, a.PromptTokens, a.CompletionTokens, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ingredients WHERE analysis_id = ?`, a.ID); err != nil {
		return fmt.Errorf("failed to clear ingredients: %w", err)
	}
	if err := insertIngredients(ctx, tx, a); err != nil {
		return err
	}

	return tx.Commit()
}

func insertIngredients(ctx context.Context, tx *sql.Tx, a *models.FoodAnalysis) error {
	for i, ing := range a.Ingredients {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ingredients (id, analysis_id, position, name, quantity, unit, calories, protein, carbs, fat)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ing.ID, a.ID, i, ing.Name, ing.Quantity, ing.Unit, ing.Calories, ing.Protein, ing.Carbs, ing.Fat)
		if err != nil {
			return fmt.Errorf("failed to insert ingredient: %w", err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.FoodAnalysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, meal_name, image_data, total_calories, confidence,
		        total_protein, total_carbs, total_fat, prompt_tokens, completion_tokens
		 FROM analyses WHERE id = ?`, id)

	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	if err := s.loadIngredients(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns all records, newest first.
func (s *Store) List(ctx context.Context) ([]*models.FoodAnalysis, error) {
	return s.query(ctx,
		`SELECT id, created_at, meal_name, image_data, total_calories, confidence,
		        total_protein, total_carbs, total_fat, prompt_tokens, completion_tokens
		 FROM analyses ORDER BY created_at DESC`)
}

// ListByDate returns the records created on the given calendar day,
// oldest first.
func (s *Store) ListByDate(ctx context.Context, day time.Time) ([]*models.FoodAnalysis, error) {
	start, end := dayBounds(day)
	return s.query(ctx,
		`SELECT id, created_at, meal_name, image_data, total_calories, confidence,
		        total_protein, total_carbs, total_fat, prompt_tokens, completion_tokens
		 FROM analyses WHERE created_at >= ? AND created_at < ? ORDER BY created_at ASC`,
		start, end)
}

// TotalCaloriesFor sums the recorded calories of a calendar day.
func (s *Store) TotalCaloriesFor(ctx context.Context, day time.Time) (int, error) {
	start, end := dayBounds(day)
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_calories), 0) FROM analyses WHERE created_at >= ? AND created_at < ?`,
		start, end).Scan(&total)
	return total, err
}

// DayCalories pairs a calendar day with its calorie total.
type DayCalories struct {
	Date     time.Time
	Calories int
}

// WeeklyCalories returns per-day calorie totals for the 7 days ending at
// today, oldest day first.
func (s *Store) WeeklyCalories(ctx context.Context, today time.Time) ([]DayCalories, error) {
	results := make([]DayCalories, 0, 7)
	for offset := 6; offset >= 0; offset-- {
		day := today.AddDate(0, 0, -offset)
		total, err := s.TotalCaloriesFor(ctx, day)
		if err != nil {
			return nil, err
		}
		start, _ := dayBounds(day)
		results = append(results, DayCalories{Date: start, Calories: total})
	}
	return results, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	t := day.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*models.FoodAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*models.FoodAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range analyses {
		if err := s.loadIngredients(ctx, a); err != nil {
			return nil, err
		}
	}
	return analyses, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable) (*models.FoodAnalysis, error) {
	a := &models.FoodAnalysis{}
	err := row.Scan(&a.ID, &a.CreatedAt, &a.MealName, &a.ImageData, &a.TotalCalories, &a.Confidence,
		&a.Totals.Protein, &a.Totals.Carbs, &a.Totals.Fat, &a.PromptTokens, &a.CompletionTokens)
	if err != nil {
		return nil, err
	}
	// Calorie totals are stored once, in total_calories.
	a.Totals.Calories = a.TotalCalories
	return a, nil
}

func (s *Store) loadIngredients(ctx context.Context, a *models.FoodAnalysis) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, quantity, unit, calories, protein, carbs, fat
		 FROM ingredients WHERE analysis_id = ? ORDER BY position ASC`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	a.Ingredients = []models.Ingredient{}
	for rows.Next() {
		var ing models.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Quantity, &ing.Unit,
			&ing.Calories, &ing.Protein, &ing.Carbs, &ing.Fat); err != nil {
			return err
		}
		a.Ingredients = append(a.Ingredients, ing)
	}
	return rows.Err()
}
