package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Options configures a Transform run. The zero value is a valid default run.
type Options struct {
	Policy         Policy
	StrictDelivery bool
	// Now stamps every ledger entry of the run. It is called once.
	Now   func() time.Time
	Stage string
	// Order overrides DefaultOrder. It is checked with NewPlan.
	Order []TableName
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }
	}
	if o.Stage == "" {
		o.Stage = DefaultStage
	}
	if o.Order == nil {
		o.Order = DefaultOrder
	}
	return o
}

// SilverTables holds the accepted rows of every table, in bronze order.
type SilverTables struct {
	Customers []Customer `json:"customers"`
	Products  []Product  `json:"products"`
	Orders    []Order    `json:"orders"`
	Payments  []Payment  `json:"payments"`
	Delivery  []Delivery `json:"delivery"`
}

// Rows returns the accepted rows of one table as Records.
func (s SilverTables) Rows(table TableName) []Record {
	switch table {
	case TableCustomers:
		return asRecords(s.Customers)
	case TableProducts:
		return asRecords(s.Products)
	case TableOrders:
		return asRecords(s.Orders)
	case TablePayments:
		return asRecords(s.Payments)
	case TableDelivery:
		return asRecords(s.Delivery)
	default:
		return nil
	}
}

// Len returns the number of accepted rows of one table.
func (s SilverTables) Len(table TableName) int {
	switch table {
	case TableCustomers:
		return len(s.Customers)
	case TableProducts:
		return len(s.Products)
	case TableOrders:
		return len(s.Orders)
	case TablePayments:
		return len(s.Payments)
	case TableDelivery:
		return len(s.Delivery)
	default:
		return 0
	}
}

func asRecords[T Record](rows []T) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

// Result is the outcome of a successful Transform.
type Result struct {
	Silver SilverTables
	Ledger *Ledger
	Report Report
}

// MarshalJSON encodes silver tables and ledger together. Two runs over the same
// snapshot with the same clock produce identical bytes.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Silver SilverTables `json:"silver"`
		Ledger *Ledger      `json:"ledger"`
		Report Report       `json:"report"`
	}{r.Silver, r.Ledger, r.Report})
}

// Transform partitions every bronze row into an accepted silver row or a
// ledger entry. Tables are processed in plan order, each validated against the
// accepted rows of the tables before it.
//
// All tables and required columns are checked before any row is touched. If
// anything is missing, Transform returns a *ContractError and no result.
func Transform(snapshot BronzeSnapshot, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	plan, err := NewPlan(opts.Order)
	if err != nil {
		return nil, err
	}
	if err := checkContract(plan, snapshot); err != nil {
		return nil, err
	}

	stamp := opts.Now()
	run := &transformRun{
		opts:   opts,
		ledger: NewLedger(func() time.Time { return stamp }),
	}
	res := &Result{
		Ledger: run.ledger,
		Report: Report{
			Stage:     opts.Stage,
			Policy:    opts.Policy.String(),
			Strict:    opts.StrictDelivery,
			CreatedAt: stamp,
		},
	}
	silver := &res.Silver

	for _, table := range plan.Tables() {
		raw := snapshot[table]
		switch table {
		case TableCustomers:
			silver.Customers = runTable(run, table, DecodeCustomers(raw), CustomerRules())
		case TableProducts:
			silver.Products = runTable(run, table, DecodeProducts(raw), ProductRules())
		case TableOrders:
			rules := OrderRules(IndexCustomers(silver.Customers))
			silver.Orders = runTable(run, table, DecodeOrders(raw), rules)
		case TablePayments:
			rules := PaymentRules(IndexOrders(silver.Orders))
			silver.Payments = runTable(run, table, DecodePayments(raw), rules)
		case TableDelivery:
			var paid PaymentDates
			if opts.StrictDelivery {
				paid = LatestPaymentDates(silver.Payments)
			}
			rules := DeliveryRules(IndexOrders(silver.Orders), paid)
			silver.Delivery = runTable(run, table, DecodeDelivery(raw), rules)
		default:
			return nil, fmt.Errorf("transform: no stage for table %q", table)
		}
	}

	res.Report.Tables = run.reports
	return res, nil
}

// transformRun is the state threaded through the stages of one Transform.
type transformRun struct {
	opts    Options
	ledger  *Ledger
	reports []TableReport
}

func runTable[T Record](run *transformRun, table TableName, rows []T, rules []Rule[T]) []T {
	kept, rejections := ApplyRules(rows, rules, run.opts.Policy)
	for _, rj := range rejections {
		run.ledger.Record(run.opts.Stage, table, rj.Rule, rj.Reason, SnapshotOf(rj.Row))
	}
	run.reports = append(run.reports, tableReport(table, len(rows), len(kept), rules, rejections))
	return kept
}

// checkContract collects every structural fault in plan order.
func checkContract(plan Plan, snapshot BronzeSnapshot) error {
	var faults []StructuralFault
	for _, table := range plan.Tables() {
		raw, ok := snapshot[table]
		if !ok {
			faults = append(faults, StructuralFault{Table: table})
			continue
		}
		faults = append(faults, CheckColumns(schemas[table], raw)...)
	}
	if len(faults) == 0 {
		return nil
	}
	cerr := &ContractError{Faults: faults}
	cerr.Blocked = plan.Downstream(cerr.FaultedTables())
	return cerr
}
