// Package storage keeps shifts, companies and users as JSON documents under a
// data directory, one file per document:
//
//	<base>/shifts/<id>.json
//	<base>/companies/<id>.json
//	<base>/users/<id>.json
//	<base>/active/<userID>      id of the user's open shift
//	<base>/locks/<userID>.lock  advisory lock guarding the marker
//
// The active marker is created exclusively and only changed while holding
// the user's file lock, which keeps a user to a single open shift even
// across processes sharing the directory.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Tiliavir/epunch/internal/model"
)

const (
	shiftsDir    = "shifts"
	companiesDir = "companies"
	usersDir     = "users"
	activeDir    = "active"
	locksDir     = "locks"

	lockRetryDelay = 10 * time.Millisecond
)

// Store is a file-backed document store. It is safe for concurrent use.
type Store struct {
	base string
	// mu serializes writers of this process; readers rely on atomic renames.
	mu sync.Mutex
}

// New opens (and creates if needed) a store rooted at base.
func New(base string) (*Store, error) {
	for _, dir := range []string{shiftsDir, companiesDir, usersDir, activeDir, locksDir} {
		if err := os.MkdirAll(filepath.Join(base, dir), 0o700); err != nil {
			return nil, fmt.Errorf("storage error creating directories: %w", err)
		}
	}
	return &Store{base: base}, nil
}

// Base returns the directory the store lives in.
func (s *Store) Base() string {
	return s.base
}

func (s *Store) docPath(collection, id string) string {
	return filepath.Join(s.base, collection, id+".json")
}

func (s *Store) markerPath(userID string) string {
	return filepath.Join(s.base, activeDir, userID)
}

// lockUser takes the cross-process lock on userID's active marker. The
// returned func releases it.
func (s *Store) lockUser(ctx context.Context, userID string) (func(), error) {
	fl := flock.New(filepath.Join(s.base, locksDir, userID+".lock"))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("storage error locking active marker of %s: %w", userID, err)
	}
	if !locked {
		return nil, fmt.Errorf("storage error locking active marker of %s", userID)
	}
	return func() { _ = fl.Unlock() }, nil
}

// validID rejects ids that would escape their collection directory.
func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

// loadDoc decodes the document at path into v. It reports false when the file
// does not exist. A file that is not valid JSON stays where it is and is
// reported as model.ErrCorruptDocument on every read; a copy is kept in
// <path>.corrupt.
func loadDoc(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage error reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		backupPath := path + ".corrupt"
		if _, statErr := os.Stat(backupPath); errors.Is(statErr, fs.ErrNotExist) {
			_ = writeAtomic(backupPath, data)
		}
		return false, fmt.Errorf("%w: %s (copy in %s): %v", model.ErrCorruptDocument, path, backupPath, err)
	}
	return true, nil
}

// saveDoc atomically writes v as indented JSON to path.
func saveDoc(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage error creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

// listDocs decodes every document of a collection, calling add for each.
func listDocs[T any](ctx context.Context, dir string, add func(T)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("storage error listing %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		var doc T
		ok, err := loadDoc(filepath.Join(dir, e.Name()), &doc)
		if err != nil {
			return err
		}
		if ok {
			add(doc)
		}
	}
	return nil
}

// GetShift returns the shift with the given id, or nil if there is none.
func (s *Store) GetShift(ctx context.Context, shiftID string) (*model.Shift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if validID(shiftID) != nil {
		return nil, nil
	}
	var shift model.Shift
	ok, err := loadDoc(s.docPath(shiftsDir, shiftID), &shift)
	if err != nil || !ok {
		return nil, err
	}
	return &shift, nil
}

// FindActiveShift returns the user's open shift, or nil if the user is
// clocked out.
func (s *Store) FindActiveShift(ctx context.Context, userID string) (*model.Shift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if validID(userID) != nil {
		return nil, nil
	}
	return s.markedShift(ctx, userID)
}

// markedShift follows the user's active marker. A marker pointing at a
// missing or closed shift is stale and yields nil.
func (s *Store) markedShift(ctx context.Context, userID string) (*model.Shift, error) {
	data, err := os.ReadFile(s.markerPath(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage error reading active marker: %w", err)
	}
	shift, err := s.GetShift(ctx, strings.TrimSpace(string(data)))
	if err != nil || shift == nil {
		return nil, err
	}
	if !shift.IsActive || shift.User != userID {
		return nil, nil
	}
	return shift, nil
}

// claimActive makes shiftID the user's open shift. It fails with
// model.ErrActiveShiftExists while a different open shift holds the marker.
// The caller holds the user's lock.
func (s *Store) claimActive(ctx context.Context, userID, shiftID string) error {
	path := s.markerPath(userID)
	for range 2 {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			_, werr := f.WriteString(shiftID)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return fmt.Errorf("storage error writing active marker: %w", errors.Join(werr, cerr))
			}
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage error creating active marker: %w", err)
		}

		holder, err := s.markedShift(ctx, userID)
		if err != nil {
			return err
		}
		if holder != nil {
			if holder.ID == shiftID {
				return nil
			}
			return model.ErrActiveShiftExists
		}
		// Stale marker: drop it and try once more.
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage error removing stale marker: %w", err)
		}
	}
	return model.ErrActiveShiftExists
}

// releaseActive removes the user's marker if it still points at shiftID.
// The caller holds the user's lock.
func (s *Store) releaseActive(userID, shiftID string) error {
	path := s.markerPath(userID)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage error reading active marker: %w", err)
	}
	if strings.TrimSpace(string(data)) != shiftID {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage error removing active marker: %w", err)
	}
	return nil
}

// CreateShift stores a new shift. An open shift also claims the user's
// active marker and fails with model.ErrActiveShiftExists if it is taken.
func (s *Store) CreateShift(ctx context.Context, fields model.ShiftFields) (model.Shift, error) {
	if err := ctx.Err(); err != nil {
		return model.Shift{}, err
	}
	if err := validID(fields.User); err != nil {
		return model.Shift{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	shift := model.NewShift(uuid.NewString(), fields)
	if shift.IsActive {
		unlock, err := s.lockUser(ctx, shift.User)
		if err != nil {
			return model.Shift{}, err
		}
		defer unlock()
	}
	path := s.docPath(shiftsDir, shift.ID)
	// The document goes first so a marker never points at a missing shift.
	if err := saveDoc(path, shift); err != nil {
		return model.Shift{}, err
	}
	if shift.IsActive {
		if err := s.claimActive(ctx, shift.User, shift.ID); err != nil {
			_ = os.Remove(path)
			return model.Shift{}, err
		}
	}
	return shift, nil
}

// UpdateShift rewrites the times of shiftID. The owner never changes.
func (s *Store) UpdateShift(ctx context.Context, shiftID string, fields model.ShiftFields) (model.Shift, error) {
	if err := ctx.Err(); err != nil {
		return model.Shift{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.GetShift(ctx, shiftID)
	if err != nil {
		return model.Shift{}, err
	}
	if current == nil {
		return model.Shift{}, fmt.Errorf("shift %s: %w", shiftID, model.ErrNotFound)
	}

	// The owner never changes, so locking before the re-read is enough.
	unlock, err := s.lockUser(ctx, current.User)
	if err != nil {
		return model.Shift{}, err
	}
	defer unlock()
	if current, err = s.GetShift(ctx, shiftID); err != nil {
		return model.Shift{}, err
	}
	if current == nil {
		return model.Shift{}, fmt.Errorf("shift %s: %w", shiftID, model.ErrNotFound)
	}

	updated := *current
	updated.SetTimes(fields.TimeIn, fields.TimeOut)

	reopened := updated.IsActive && !current.IsActive
	if reopened {
		if err := s.claimActive(ctx, updated.User, updated.ID); err != nil {
			return model.Shift{}, err
		}
	}
	if err := saveDoc(s.docPath(shiftsDir, shiftID), updated); err != nil {
		if reopened {
			_ = s.releaseActive(updated.User, updated.ID)
		}
		return model.Shift{}, err
	}
	if current.IsActive && !updated.IsActive {
		if err := s.releaseActive(updated.User, updated.ID); err != nil {
			return model.Shift{}, err
		}
	}
	return updated, nil
}

// ListShifts returns every shift matching filter.
func (s *Store) ListShifts(ctx context.Context, filter model.ShiftFilter) ([]model.Shift, error) {
	var shifts []model.Shift
	err := listDocs(ctx, filepath.Join(s.base, shiftsDir), func(sh model.Shift) {
		if filter.Match(sh) {
			shifts = append(shifts, sh)
		}
	})
	if err != nil {
		return nil, err
	}
	model.SortShifts(shifts, filter.Order)
	return shifts, nil
}

// GetCompany returns the company with the given id, or nil if there is none.
func (s *Store) GetCompany(ctx context.Context, companyID string) (*model.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if validID(companyID) != nil {
		return nil, nil
	}
	var company model.Company
	ok, err := loadDoc(s.docPath(companiesDir, companyID), &company)
	if err != nil || !ok {
		return nil, err
	}
	return &company, nil
}

// ListCompanyUsers returns the users of companyID ordered by id.
func (s *Store) ListCompanyUsers(ctx context.Context, companyID string) ([]model.User, error) {
	var users []model.User
	err := listDocs(ctx, filepath.Join(s.base, usersDir), func(u model.User) {
		if u.CompanyID == companyID {
			users = append(users, u)
		}
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns the user with the given id, or nil if there is none.
func (s *Store) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if validID(userID) != nil {
		return nil, nil
	}
	var user model.User
	ok, err := loadDoc(s.docPath(usersDir, userID), &user)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

// CreateCompany stores a new company, generating its id when empty.
func (s *Store) CreateCompany(ctx context.Context, company model.Company) (model.Company, error) {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	if err := s.create(ctx, companiesDir, company.ID, company); err != nil {
		return model.Company{}, err
	}
	return company, nil
}

// UpdateCompany overwrites an existing company.
func (s *Store) UpdateCompany(ctx context.Context, company model.Company) (model.Company, error) {
	if err := ctx.Err(); err != nil {
		return model.Company{}, err
	}
	if err := validID(company.ID); err != nil {
		return model.Company{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.docPath(companiesDir, company.ID)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return model.Company{}, fmt.Errorf("company %s: %w", company.ID, model.ErrNotFound)
	}
	if err := saveDoc(path, company); err != nil {
		return model.Company{}, err
	}
	return company, nil
}

// CreateUser stores a new user, generating its id when empty.
func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := s.create(ctx, usersDir, user.ID, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// create writes a document that must not exist yet.
func (s *Store) create(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.docPath(collection, id)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("storage error: document %s/%s already exists", collection, id)
	}
	return saveDoc(path, doc)
}
