package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Tiliavir/epunch/internal/model"
)

func (db *DB) GetCompany(ctx context.Context, companyID string) (*model.Company, error) {
	company := &model.Company{}
	query := `SELECT id, name, manager_id, start_day FROM companies WHERE id = ?`

	err := db.conn.QueryRowContext(ctx, query, companyID).Scan(
		&company.ID,
		&company.Name,
		&company.ManagerID,
		&company.StartDay,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

func (db *DB) CreateCompany(ctx context.Context, company model.Company) (model.Company, error) {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	query := `
		INSERT INTO companies (id, name, manager_id, start_day)
		VALUES (?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query, company.ID, company.Name, company.ManagerID, company.StartDay)
	if isDuplicateKey(err) {
		return model.Company{}, fmt.Errorf("company %s already exists", company.ID)
	}
	if err != nil {
		return model.Company{}, fmt.Errorf("failed to create company: %w", err)
	}
	return company, nil
}

func (db *DB) UpdateCompany(ctx context.Context, company model.Company) (model.Company, error) {
	query := `UPDATE companies SET name = ?, manager_id = ?, start_day = ? WHERE id = ?`

	result, err := db.conn.ExecContext(ctx, query, company.Name, company.ManagerID, company.StartDay, company.ID)
	if err != nil {
		return model.Company{}, fmt.Errorf("failed to update company: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.Company{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return model.Company{}, fmt.Errorf("company %s: %w", company.ID, model.ErrNotFound)
	}
	return company, nil
}

func (db *DB) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, name, company_id, is_manager FROM users WHERE id = ?`

	err := db.conn.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Name,
		&user.CompanyID,
		&user.IsManager,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (db *DB) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `
		INSERT INTO users (id, name, company_id, is_manager)
		VALUES (?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query, user.ID, user.Name, user.CompanyID, user.IsManager)
	if isDuplicateKey(err) {
		return model.User{}, fmt.Errorf("user %s already exists", user.ID)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// ListCompanyUsers returns the users of companyID ordered by id.
func (db *DB) ListCompanyUsers(ctx context.Context, companyID string) ([]model.User, error) {
	query := `
		SELECT id, name, company_id, is_manager
		FROM users
		WHERE company_id = ?
		ORDER BY id ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Name, &user.CompanyID, &user.IsManager); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
