package temporal

// CurePeriod is a preset curing duration offered when recording a sample.
type CurePeriod struct {
	Label       string
	Days        int
	Description string
}

// CurePeriods lists the standard curing presets in ascending order.
var CurePeriods = []CurePeriod{
	{Label: "3 Gün", Days: 3, Description: "Erken mukavemet"},
	{Label: "7 Gün", Days: 7, Description: "Standart kontrol"},
	{Label: "14 Gün", Days: 14, Description: "Orta süre"},
	{Label: "28 Gün", Days: 28, Description: "Tam mukavemet"},
	{Label: "56 Gün", Days: 56, Description: "Uzun süre"},
	{Label: "90 Gün", Days: 90, Description: "Çok uzun süre"},
}

// LookupPeriod returns the preset with the given day count.
func LookupPeriod(days int) (CurePeriod, bool) {
	for _, p := range CurePeriods {
		if p.Days == days {
			return p, true
		}
	}
	return CurePeriod{}, false
}
