package analytics

// Aging partitions receivables relative to an analysis date.
type Aging struct {
	AsOf     Date
	Overdue  []OpenItemRecord
	NotDue   []OpenItemRecord
	Excluded int
}

// Classify splits items into overdue (due before asOf) and not yet due (due on or
// after asOf). Items without a due date land in neither partition and are counted
// in Excluded. items is not modified.
func Classify(items []OpenItemRecord, asOf Date) Aging {
	aging := Aging{
		AsOf:    asOf,
		Overdue: make([]OpenItemRecord, 0),
		NotDue:  make([]OpenItemRecord, 0),
	}
	for _, item := range items {
		switch {
		case !item.DueDate.Valid:
			aging.Excluded++
		case item.DueDate.Before(asOf):
			aging.Overdue = append(aging.Overdue, item)
		default:
			aging.NotDue = append(aging.NotDue, item)
		}
	}
	return aging
}

// AgingBucket summarises an amount inside an aging partition.
type AgingBucket struct {
	Bucket string  `json:"bucket"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// Aging bucket names.
const (
	BucketOverdue = "overdue"
	BucketNotDue  = "not_due"
)

// Buckets returns the two partitions as summary buckets, overdue first.
func (a Aging) Buckets() []AgingBucket {
	return []AgingBucket{
		{Bucket: BucketOverdue, Count: len(a.Overdue), Amount: sumOpenItems(a.Overdue)},
		{Bucket: BucketNotDue, Count: len(a.NotDue), Amount: sumOpenItems(a.NotDue)},
	}
}

func sumOpenItems(items []OpenItemRecord) float64 {
	total := 0.0
	for _, item := range items {
		total += item.NetAmount.OrZero()
	}
	return total
}
