// Package firebase stores shifts, companies and users in Cloud Firestore,
// using the document layout of the hosted deployment:
//
//	shifts/{id}     user, timeIn, timeOut, isActive
//	companies/{id}  name, managerId, startDay
//	users/{id}      name, companyId, isManager
//
// Writes that open a shift run in a Firestore transaction that first reads
// the user's open shifts, so two concurrent punch-ins cannot both commit.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Tiliavir/epunch/internal/model"
)

const (
	shiftsCollection    = "shifts"
	companiesCollection = "companies"
	usersCollection     = "users"

	// maxInValues is Firestore's limit on the operands of an "in" filter.
	maxInValues = 30
)

const datastoreScope = "https://www.googleapis.com/auth/datastore"

type shiftDoc struct {
	User     string     `firestore:"user"`
	TimeIn   time.Time  `firestore:"timeIn"`
	TimeOut  *time.Time `firestore:"timeOut"`
	IsActive bool       `firestore:"isActive"`
}

type companyDoc struct {
	Name      string `firestore:"name"`
	ManagerID string `firestore:"managerId"`
	StartDay  string `firestore:"startDay"`
}

type userDoc struct {
	Name      string `firestore:"name"`
	CompanyID string `firestore:"companyId"`
	IsManager bool   `firestore:"isManager"`
}

func toShiftDoc(s model.Shift) shiftDoc {
	return shiftDoc{User: s.User, TimeIn: s.TimeIn, TimeOut: s.TimeOut, IsActive: s.IsActive}
}

func decodeShift(snap *firestore.DocumentSnapshot) (model.Shift, error) {
	var d shiftDoc
	if err := snap.DataTo(&d); err != nil {
		return model.Shift{}, fmt.Errorf("%w: shifts/%s: %v", model.ErrCorruptDocument, snap.Ref.ID, err)
	}
	return model.Shift{ID: snap.Ref.ID, User: d.User, TimeIn: d.TimeIn, TimeOut: d.TimeOut, IsActive: d.IsActive}, nil
}

// NewClient connects to projectID. credentialsFile is a service account JSON
// key; when empty, application default credentials are used. The emulator is
// picked up from FIRESTORE_EMULATOR_HOST.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading firestore credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, datastoreScope)
		if err != nil {
			return nil, fmt.Errorf("parsing firestore credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to firestore: %w", err)
	}
	return client, nil
}

// Store implements the shift store on a Firestore client.
type Store struct {
	client *firestore.Client
}

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) shifts() *firestore.CollectionRef {
	return s.client.Collection(shiftsCollection)
}

func (s *Store) activeQuery(userID string) firestore.Query {
	return s.shifts().Where("user", "==", userID).Where("isActive", "==", true)
}

// FindActiveShift returns the user's open shift, or nil.
func (s *Store) FindActiveShift(ctx context.Context, userID string) (*model.Shift, error) {
	snaps, err := s.activeQuery(userID).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("querying active shift: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	shift, err := decodeShift(snaps[0])
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// GetShift returns the shift with the given id, or nil.
func (s *Store) GetShift(ctx context.Context, shiftID string) (*model.Shift, error) {
	snap, err := s.shifts().Doc(shiftID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting shift %s: %w", shiftID, err)
	}
	shift, err := decodeShift(snap)
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// CreateShift adds a shift document. Open shifts are created inside a
// transaction that fails with model.ErrActiveShiftExists if the user already
// has one.
func (s *Store) CreateShift(ctx context.Context, fields model.ShiftFields) (model.Shift, error) {
	shift := model.NewShift(uuid.NewString(), fields)
	ref := s.shifts().Doc(shift.ID)

	if !shift.IsActive {
		if _, err := ref.Create(ctx, toShiftDoc(shift)); err != nil {
			return model.Shift{}, fmt.Errorf("creating shift: %w", err)
		}
		return shift, nil
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		open, err := tx.Documents(s.activeQuery(shift.User).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return model.ErrActiveShiftExists
		}
		return tx.Create(ref, toShiftDoc(shift))
	})
	if errors.Is(err, model.ErrActiveShiftExists) {
		return model.Shift{}, err
	}
	if err != nil {
		return model.Shift{}, fmt.Errorf("creating shift: %w", err)
	}
	return shift, nil
}

// UpdateShift rewrites the times of shiftID inside a transaction. Re-opening
// a shift while the owner has another open one fails with
// model.ErrActiveShiftExists.
func (s *Store) UpdateShift(ctx context.Context, shiftID string, fields model.ShiftFields) (model.Shift, error) {
	ref := s.shifts().Doc(shiftID)
	var updated model.Shift

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("shift %s: %w", shiftID, model.ErrNotFound)
		}
		if err != nil {
			return err
		}
		current, err := decodeShift(snap)
		if err != nil {
			return err
		}

		updated = current
		updated.SetTimes(fields.TimeIn, fields.TimeOut)
		if updated.IsActive && !current.IsActive {
			open, err := tx.Documents(s.activeQuery(current.User)).GetAll()
			if err != nil {
				return err
			}
			for _, o := range open {
				if o.Ref.ID != shiftID {
					return model.ErrActiveShiftExists
				}
			}
		}
		return tx.Set(ref, toShiftDoc(updated))
	})
	switch {
	case errors.Is(err, model.ErrActiveShiftExists),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrCorruptDocument):
		return model.Shift{}, err
	case err != nil:
		return model.Shift{}, fmt.Errorf("updating shift %s: %w", shiftID, err)
	}
	return updated, nil
}

// ListShifts pushes the user and active restrictions to Firestore and
// applies the time window and ordering in memory, so no composite index is
// needed.
func (s *Store) ListShifts(ctx context.Context, filter model.ShiftFilter) ([]model.Shift, error) {
	base := s.shifts().Query
	if filter.Active != nil {
		base = base.Where("isActive", "==", *filter.Active)
	}

	var queries []firestore.Query
	if len(filter.Users) == 0 {
		queries = append(queries, base)
	}
	for start := 0; start < len(filter.Users); start += maxInValues {
		end := min(start+maxInValues, len(filter.Users))
		queries = append(queries, base.Where("user", "in", filter.Users[start:end]))
	}

	var shifts []model.Shift
	for _, q := range queries {
		iter := q.Documents(ctx)
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, fmt.Errorf("listing shifts: %w", err)
			}
			shift, err := decodeShift(snap)
			if err != nil {
				iter.Stop()
				return nil, err
			}
			if filter.Match(shift) {
				shifts = append(shifts, shift)
			}
		}
		iter.Stop()
	}
	model.SortShifts(shifts, filter.Order)
	return shifts, nil
}

// GetCompany returns the company with the given id, or nil.
func (s *Store) GetCompany(ctx context.Context, companyID string) (*model.Company, error) {
	snap, err := s.client.Collection(companiesCollection).Doc(companyID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting company %s: %w", companyID, err)
	}
	var d companyDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("%w: companies/%s: %v", model.ErrCorruptDocument, companyID, err)
	}
	return &model.Company{ID: companyID, Name: d.Name, ManagerID: d.ManagerID, StartDay: d.StartDay}, nil
}

func (s *Store) CreateCompany(ctx context.Context, company model.Company) (model.Company, error) {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	doc := companyDoc{Name: company.Name, ManagerID: company.ManagerID, StartDay: company.StartDay}
	if _, err := s.client.Collection(companiesCollection).Doc(company.ID).Create(ctx, doc); err != nil {
		return model.Company{}, fmt.Errorf("creating company: %w", err)
	}
	return company, nil
}

func (s *Store) UpdateCompany(ctx context.Context, company model.Company) (model.Company, error) {
	_, err := s.client.Collection(companiesCollection).Doc(company.ID).Update(ctx, []firestore.Update{
		{Path: "name", Value: company.Name},
		{Path: "managerId", Value: company.ManagerID},
		{Path: "startDay", Value: company.StartDay},
	})
	if status.Code(err) == codes.NotFound {
		return model.Company{}, fmt.Errorf("company %s: %w", company.ID, model.ErrNotFound)
	}
	if err != nil {
		return model.Company{}, fmt.Errorf("updating company %s: %w", company.ID, err)
	}
	return company, nil
}

// GetUser returns the user with the given id, or nil.
func (s *Store) GetUser(ctx context.Context, userID string) (*model.User, error) {
	snap, err := s.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", userID, err)
	}
	user, err := decodeUser(snap)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	doc := userDoc{Name: user.Name, CompanyID: user.CompanyID, IsManager: user.IsManager}
	if _, err := s.client.Collection(usersCollection).Doc(user.ID).Create(ctx, doc); err != nil {
		return model.User{}, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// ListCompanyUsers returns the users of companyID ordered by id.
func (s *Store) ListCompanyUsers(ctx context.Context, companyID string) ([]model.User, error) {
	snaps, err := s.client.Collection(usersCollection).Where("companyId", "==", companyID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("listing users of company %s: %w", companyID, err)
	}
	users := make([]model.User, 0, len(snaps))
	for _, snap := range snaps {
		user, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	// Query results are ordered by document id already.
	return users, nil
}

func decodeUser(snap *firestore.DocumentSnapshot) (model.User, error) {
	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return model.User{}, fmt.Errorf("%w: users/%s: %v", model.ErrCorruptDocument, snap.Ref.ID, err)
	}
	return model.User{ID: snap.Ref.ID, Name: d.Name, CompanyID: d.CompanyID, IsManager: d.IsManager}, nil
}
