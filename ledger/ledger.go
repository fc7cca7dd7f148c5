// Package ledger is the authority over checkout and sale state.
//
// It enforces the checkout lifecycle
//
//	PENDING --Approve--> APPROVED --Consume--> CONSUMED
//
// and nothing ever leaves CONSUMED. Every mutating call holds the ledger lock
// for its whole read-modify-write, so two concurrent Consume calls for the
// same checkout cannot both record a sale. A failed call leaves the ledger
// unchanged.
package ledger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkantrust/vending-checkout/catalog"
	"github.com/arkantrust/vending-checkout/events"
	"github.com/arkantrust/vending-checkout/models"
	"github.com/arkantrust/vending-checkout/payment"
	"github.com/arkantrust/vending-checkout/store"
)

// Quantity bounds accepted by Create.
const (
	MinQuantity = 1
	MaxQuantity = 20
)

var (
	// ErrValidation covers bad or missing input and unknown or inactive machines.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for an unknown checkout id.
	ErrNotFound = errors.New("checkout not found")
	// ErrMachineMismatch is returned when a checkout is reported by another machine.
	ErrMachineMismatch = errors.New("machine does not match checkout")
	// ErrInvalidState is returned for a transition the current status does not allow.
	ErrInvalidState = errors.New("invalid checkout state")
)

// IDGenerator returns a fresh identifier carrying the given prefix.
type IDGenerator func(prefix string) string

// UUIDGenerator produces ids like "CHK_1b4e28ba-2fa1-11d2-883f-0016d3cca427".
func UUIDGenerator(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Ledger owns every checkout and sale for the life of the process.
type Ledger struct {
	mu sync.Mutex

	catalog  *catalog.Catalog
	store    store.Store
	now      func() time.Time
	newID    IDGenerator
	issuer   payment.ReferenceIssuer
	notifier events.Notifier
	logger   *log.Logger
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides UUIDGenerator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(l *Ledger) { l.newID = gen }
}

// WithReferenceIssuer overrides the placeholder PIX reference.
func WithReferenceIssuer(issuer payment.ReferenceIssuer) Option {
	return func(l *Ledger) { l.issuer = issuer }
}

// WithNotifier registers a sink that hears about every committed sale.
func WithNotifier(n events.Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithLogger sends ledger logs to logger; they are discarded by default.
func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New builds a ledger over the given machines and store.
func New(cat *catalog.Catalog, s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		catalog: cat,
		store:   s,
		now:     time.Now,
		newID:   UUIDGenerator,
		issuer:  payment.Placeholder{},
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ParseQuantity converts user input to a quantity. Only plain decimal
// integers within [MinQuantity, MaxQuantity] are accepted; "2.5", "3abc" and
// "" are rejected rather than truncated.
func ParseQuantity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	qty, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: quantity %q is not an integer", ErrValidation, raw)
	}
	if err := validateQuantity(qty); err != nil {
		return 0, err
	}
	return qty, nil
}

func validateQuantity(qty int) error {
	if qty < MinQuantity || qty > MaxQuantity {
		return fmt.Errorf("%w: quantity must be between %d and %d", ErrValidation, MinQuantity, MaxQuantity)
	}
	return nil
}

// Create opens a PENDING checkout for quantity units at the machine.
func (l *Ledger) Create(machineID string, quantity int) (*models.Checkout, error) {
	if machineID == "" {
		return nil, fmt.Errorf("%w: machineId is required", ErrValidation)
	}
	machine, ok := l.catalog.Lookup(machineID)
	if !ok || !machine.Active {
		return nil, fmt.Errorf("%w: machine %q is unknown or inactive", ErrValidation, machineID)
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id, err := l.freshCheckoutID()
	if err != nil {
		return nil, err
	}
	c := &models.Checkout{
		ID:               id,
		MachineID:        machine.ID,
		Quantity:         quantity,
		AmountMinorUnits: int64(quantity) * machine.UnitPriceMinorUnits,
		Status:           models.StatusPending,
		CreatedAt:        l.now().UTC(),
		PaymentReference: l.issuer.Issue(id),
	}
	if err := l.store.PutCheckout(c); err != nil {
		return nil, fmt.Errorf("store checkout %s: %w", id, err)
	}

	l.logger.Printf("checkout %s created: machine=%s qty=%d amount=%d", id, c.MachineID, c.Quantity, c.AmountMinorUnits)
	return c, nil
}

// maxIDAttempts bounds how often Create asks the generator for an unused id.
const maxIDAttempts = 3

// ErrIDCollision is returned when the id generator keeps producing ids that
// are already taken.
var ErrIDCollision = errors.New("checkout id collision")

// freshCheckoutID returns a generated id no stored checkout uses yet, so a
// repeating generator can never overwrite an existing checkout.
func (l *Ledger) freshCheckoutID() (string, error) {
	var id string
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id = l.newID("CHK")
		_, err := l.store.GetCheckout(id)
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("check checkout id %s: %w", id, err)
		}
	}
	return "", fmt.Errorf("%w: %s still taken after %d attempts", ErrIDCollision, id, maxIDAttempts)
}

// Approve marks a PENDING checkout as paid.
func (l *Ledger) Approve(checkoutID string) (*models.Checkout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.load(checkoutID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: checkout %s is %s, only %s can be approved", ErrInvalidState, c.ID, c.Status, models.StatusPending)
	}

	paidAt := notBefore(l.now().UTC(), c.CreatedAt)
	c.Status = models.StatusApproved
	c.PaidAt = &paidAt
	if err := l.store.PutCheckout(c); err != nil {
		return nil, fmt.Errorf("store checkout %s: %w", c.ID, err)
	}

	l.logger.Printf("checkout %s approved", c.ID)
	return c, nil
}

// FindPendingCommand returns the approved, not yet consumed checkout the
// machine should dispense next, or nil when there is none. The oldest
// payment wins; ties fall back to creation time, then id.
func (l *Ledger) FindPendingCommand(machineID string) (*models.Checkout, error) {
	if _, ok := l.catalog.Lookup(machineID); !ok {
		return nil, fmt.Errorf("%w: machine %q is unknown", ErrValidation, machineID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.store.ListCheckouts()
	if err != nil {
		return nil, fmt.Errorf("list checkouts: %w", err)
	}

	var candidates []models.Checkout
	for _, c := range all {
		if c.MachineID == machineID && c.Status == models.StatusApproved {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.PaidAt.Equal(*b.PaidAt) {
			return a.PaidAt.Before(*b.PaidAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return &candidates[0], nil
}

// Consume records that the machine dispensed an APPROVED checkout and
// appends exactly one sale for it.
func (l *Ledger) Consume(checkoutID, machineID string) (*models.Checkout, *models.Sale, error) {
	c, sale, err := l.consume(checkoutID, machineID)
	if err != nil {
		return nil, nil, err
	}

	// The sale is already committed; a notifier failure must not undo it.
	if l.notifier != nil {
		if err := l.notifier.SaleRecorded(*sale); err != nil {
			l.logger.Printf("sale %s notification failed: %v", sale.ID, err)
		}
	}
	return c, sale, nil
}

func (l *Ledger) consume(checkoutID, machineID string) (*models.Checkout, *models.Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.load(checkoutID)
	if err != nil {
		return nil, nil, err
	}
	if c.MachineID != machineID {
		return nil, nil, fmt.Errorf("%w: checkout %s belongs to %s, not %s", ErrMachineMismatch, c.ID, c.MachineID, machineID)
	}
	if c.Status != models.StatusApproved {
		return nil, nil, fmt.Errorf("%w: checkout %s is %s, only %s can be consumed", ErrInvalidState, c.ID, c.Status, models.StatusApproved)
	}

	consumedAt := notBefore(l.now().UTC(), *c.PaidAt)
	updated := *c
	updated.Status = models.StatusConsumed
	updated.ConsumedAt = &consumedAt

	sale := &models.Sale{
		ID:               l.newID("SALE"),
		CheckoutID:       updated.ID,
		MachineID:        updated.MachineID,
		Quantity:         updated.Quantity,
		AmountMinorUnits: updated.AmountMinorUnits,
		RecordedAt:       consumedAt,
	}
	if err := l.store.CommitConsumption(&updated, sale); err != nil {
		return nil, nil, fmt.Errorf("commit consumption of %s: %w", c.ID, err)
	}

	l.logger.Printf("checkout %s consumed at machine %s, sale %s", updated.ID, updated.MachineID, sale.ID)
	return &updated, sale, nil
}

// Get returns a checkout by id.
func (l *Ledger) Get(checkoutID string) (*models.Checkout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.load(checkoutID)
}

// Status returns only the lifecycle state of a checkout.
func (l *Ledger) Status(checkoutID string) (models.Status, error) {
	c, err := l.Get(checkoutID)
	if err != nil {
		return "", err
	}
	return c.Status, nil
}

// Sales returns every recorded sale in the order it was recorded.
func (l *Ledger) Sales() ([]models.Sale, error) {
	sales, err := l.store.ListSales()
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	if sales == nil {
		sales = []models.Sale{}
	}
	return sales, nil
}

// Machines lists the configured machines.
func (l *Ledger) Machines() []models.Machine {
	return l.catalog.All()
}

func (l *Ledger) load(checkoutID string) (*models.Checkout, error) {
	if checkoutID == "" {
		return nil, fmt.Errorf("%w: empty checkout id", ErrNotFound)
	}
	c, err := l.store.GetCheckout(checkoutID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, checkoutID)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkout %s: %w", checkoutID, err)
	}
	return c, nil
}

// notBefore keeps lifecycle timestamps non-decreasing if the wall clock
// steps backwards between transitions.
func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
