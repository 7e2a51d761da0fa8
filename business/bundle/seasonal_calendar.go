package bundle

import "time"

var seasonalCalendar = map[time.Month][3]string{
	time.January:   {"winter_clothing", "fitness", "home_organization"},
	time.February:  {"winter_clothing", "valentines_gifts", "home_organization"},
	time.March:     {"spring_fashion", "gardening", "cleaning_supplies"},
	time.April:     {"spring_fashion", "gardening", "outdoor"},
	time.May:       {"outdoor", "gardening", "mothers_day_gifts"},
	time.June:      {"summer_clothing", "outdoor", "fathers_day_gifts"},
	time.July:      {"summer_clothing", "swimwear", "travel"},
	time.August:    {"summer_clothing", "back_to_school", "travel"},
	time.September: {"back_to_school", "fall_fashion", "home_decor"},
	time.October:   {"fall_fashion", "halloween", "home_decor"},
	time.November:  {"winter_clothing", "electronics", "holiday_gifts"},
	time.December:  {"winter_clothing", "christmas", "holiday_gifts"},
}

// SeasonalCategories returns the three category tags promoted in a month.
func SeasonalCategories(m time.Month) []string {
	tags := seasonalCalendar[m]
	return []string{tags[0], tags[1], tags[2]}
}
