package patients

import (
	"sort"
	"strings"
	"testing"
	"time"
)

// The functions below mirror the generated CASE expressions at timestamp
// precision, the way PostgreSQL would evaluate them. The sweep test checks
// that they agree with Classify for every snapshot, which is the property
// the one-day interval shift in sql.go exists to preserve.

func sqlSegment(p *Patient, now time.Time) Segment {
	last := p.LastAppointmentDate
	day := 24 * time.Hour
	switch {
	case last == nil:
		return SegmentNew
	case p.TotalAppointmentCount >= completedMinTotal &&
		!last.After(now.Add(-time.Duration(atRiskWindowDays+1)*day)) &&
		last.After(now.Add(-time.Duration(completedMaxDays)*day)):
		return SegmentCompleted
	case last.After(now.Add(-time.Duration(activeWindowDays+1) * day)):
		return SegmentActive
	case last.After(now.Add(-time.Duration(atRiskWindowDays+1) * day)):
		return SegmentAtRisk
	case last.After(now.Add(-time.Duration(dormantWindowDays+1) * day)):
		return SegmentDormant
	default:
		return SegmentChurned
	}
}

func sqlPriority(p *Patient, now time.Time) Priority {
	last := p.LastAppointmentDate
	day := 24 * time.Hour
	switch {
	case last != nil && !last.After(now.Add(-time.Duration(highPriorityMinDays)*day)):
		return PriorityHigh
	case p.UpcomingAppointmentCount == 0:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func sqlMomentum(p *Patient) Momentum {
	switch {
	case p.RecentAppointmentCount >= buildingMinRecent && p.UpcomingAppointmentCount > 0:
		return MomentumBuilding
	case p.RecentAppointmentCount >= maintainingMinRecent && p.UpcomingAppointmentCount > 0:
		return MomentumMaintaining
	case p.RecentAppointmentCount > 0 && p.UpcomingAppointmentCount == 0:
		return MomentumDeclining
	default:
		return MomentumStalled
	}
}

// sweepPopulation generates snapshots straddling every rule boundary:
// hourly offsets around each day threshold, a coarse sweep across the whole
// range, future appointments and missing history, crossed with the count
// combinations that flip momentum, priority and the completed override.
func sweepPopulation() []*Patient {
	var offsets []time.Duration
	boundaries := []int{0, activeWindowDays, activeWindowDays + 1,
		atRiskWindowDays, atRiskWindowDays + 1,
		dormantWindowDays, dormantWindowDays + 1,
		completedMaxDays - 1, completedMaxDays}
	for _, b := range boundaries {
		for h := -26; h <= 26; h += 5 {
			offsets = append(offsets, time.Duration(b)*24*time.Hour+time.Duration(h)*time.Hour)
		}
	}
	for h := -120; h <= 100*24; h += 37 {
		offsets = append(offsets, time.Duration(h)*time.Hour)
	}

	counts := []struct{ recent, upcoming, total int }{
		{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {1, 0, 1}, {1, 1, 2},
		{2, 1, 4}, {3, 1, 7}, {3, 0, 8}, {0, 0, 8}, {2, 2, 9}, {5, 0, 12},
		{0, 0, 3}, {0, 1, 6},
	}

	var pop []*Patient
	for _, off := range offsets {
		last := t0.Add(-off)
		for _, c := range counts {
			l := last
			pop = append(pop, snapshot(&l, c.recent, c.upcoming, c.total))
		}
	}
	for _, c := range counts {
		pop = append(pop, snapshot(nil, c.recent, c.upcoming, c.total))
	}
	return pop
}

func TestRowAndAggregateRulesAgree(t *testing.T) {
	for _, p := range sweepPopulation() {
		row := Classify(p, t0)
		if got := sqlSegment(p, t0); got != row.PatientSegment {
			t.Fatalf("segment diverged for last=%v total=%d: sql=%s row=%s",
				p.LastAppointmentDate, p.TotalAppointmentCount, got, row.PatientSegment)
		}
		if got := sqlPriority(p, t0); got != row.RebookingPriority {
			t.Fatalf("priority diverged for last=%v upcoming=%d: sql=%s row=%s",
				p.LastAppointmentDate, p.UpcomingAppointmentCount, got, row.RebookingPriority)
		}
		if got := sqlMomentum(p); got != row.TreatmentMomentum {
			t.Fatalf("momentum diverged for recent=%d upcoming=%d: sql=%s row=%s",
				p.RecentAppointmentCount, p.UpcomingAppointmentCount, got, row.TreatmentMomentum)
		}
	}
}

func TestAggregateCountsMatchRowClassification(t *testing.T) {
	pop := sweepPopulation()
	rowSeg := map[Segment]int{}
	rowPri := map[Priority]int{}
	rowMom := map[Momentum]int{}
	sqlSeg := map[Segment]int{}
	sqlPri := map[Priority]int{}
	sqlMom := map[Momentum]int{}
	for _, p := range pop {
		row := Classify(p, t0)
		rowSeg[row.PatientSegment]++
		rowPri[row.RebookingPriority]++
		rowMom[row.TreatmentMomentum]++
		sqlSeg[sqlSegment(p, t0)]++
		sqlPri[sqlPriority(p, t0)]++
		sqlMom[sqlMomentum(p)]++
	}
	for seg, n := range rowSeg {
		if sqlSeg[seg] != n {
			t.Errorf("segment %s: row count %d, aggregate count %d", seg, n, sqlSeg[seg])
		}
	}
	for pri, n := range rowPri {
		if sqlPri[pri] != n {
			t.Errorf("priority %s: row count %d, aggregate count %d", pri, n, sqlPri[pri])
		}
	}
	for mom, n := range rowMom {
		if sqlMom[mom] != n {
			t.Errorf("momentum %s: row count %d, aggregate count %d", mom, n, sqlMom[mom])
		}
	}
}

// The generated SQL must carry the one-day shift relative to the whole-day
// classifier windows, and every count threshold verbatim.
func TestGeneratedSQLPinsThresholds(t *testing.T) {
	seg := segmentCaseExpr()
	for _, want := range []string{
		"INTERVAL '15 days'", "INTERVAL '31 days'", "INTERVAL '61 days'",
		"INTERVAL '90 days'", "total_appointment_count >= 8",
	} {
		if !strings.Contains(seg, want) {
			t.Errorf("segment CASE missing %q:\n%s", want, seg)
		}
	}

	pri := priorityCaseExpr()
	if !strings.Contains(pri, "INTERVAL '30 days'") {
		t.Errorf("priority CASE missing 30-day boundary:\n%s", pri)
	}

	mom := momentumCaseExpr()
	for _, want := range []string{">= 3", ">= 2"} {
		if !strings.Contains(mom, "recent_appointment_count "+want) {
			t.Errorf("momentum CASE missing %q:\n%s", want, mom)
		}
	}
}

func TestStatsSQLScoping(t *testing.T) {
	if strings.Contains(statsSQL(false), "organization_id") {
		t.Error("unscoped stats query must not reference organization_id")
	}
	if !strings.Contains(statsSQL(true), "WHERE organization_id = $1") {
		t.Error("scoped stats query must filter by organization_id")
	}
	if !strings.Contains(distributionSQL(true), "WHERE organization_id = $1") {
		t.Error("scoped distribution query must filter by organization_id")
	}
}

func TestParseFilterFallsBackToAll(t *testing.T) {
	for _, tok := range []string{"", "bogus", "ALL", "High"} {
		if got := ParseFilter(tok); got != FilterAll {
			t.Errorf("ParseFilter(%q) = %s, want all", tok, got)
		}
	}
	if got := ParseFilter("treatment_building"); got != FilterTreatmentBuilding {
		t.Errorf("ParseFilter(treatment_building) = %s", got)
	}
}

func TestCompoundPredicatesAreParenthesised(t *testing.T) {
	for _, f := range []Filter{FilterMedium, FilterLow, FilterInactive, FilterActive,
		FilterHighValueAtRisk, FilterImmediateRebooking,
		FilterTreatmentBuilding, FilterTreatmentDeclining} {
		pred := f.Predicate()
		if !strings.HasPrefix(pred, "(") || !strings.HasSuffix(pred, ")") {
			t.Errorf("filter %s predicate not parenthesised: %s", f, pred)
		}
	}
	if FilterAll.Predicate() != "" {
		t.Error("all filter must not add a predicate")
	}
}

func TestOrderClauseUrgencyThresholds(t *testing.T) {
	oc := orderClause()
	for _, want := range []string{
		"BETWEEN NOW() - INTERVAL '45 days' AND NOW() - INTERVAL '21 days'",
		"BETWEEN NOW() - INTERVAL '21 days' AND NOW()",
		"INTERVAL '90 days'",
		"total_appointment_count >= 5",
		"last_appointment_date DESC NULLS LAST",
		"recent_appointment_count DESC",
	} {
		if !strings.Contains(oc, want) {
			t.Errorf("order clause missing %q:\n%s", want, oc)
		}
	}
}

// BETWEEN takes the lower bound first, which for "days ago" windows means
// the larger interval renders first. Getting this backwards selects nothing.
func TestGapBetweenRendersOlderBoundFirst(t *testing.T) {
	want := `last_appointment_date BETWEEN NOW() - INTERVAL '60 days' AND NOW() - INTERVAL '30 days'`
	if got := gapBetween(dormantWindowDays, atRiskWindowDays); got != want {
		t.Errorf("gapBetween(60, 30) = %q, want %q", got, want)
	}
	want = `last_appointment_date BETWEEN NOW() - INTERVAL '30 days' AND NOW() - INTERVAL '14 days'`
	if got := FilterAtRisk.Predicate(); got != want {
		t.Errorf("at_risk predicate = %q, want %q", got, want)
	}
}

// urgencyTier mirrors the orderClause CASE at timestamp precision. SQL
// comparisons against a NULL last_appointment_date are false, so rows
// without history can never reach the urgent tier.
func urgencyTier(p *Patient, now time.Time) int {
	day := 24 * time.Hour
	last := p.LastAppointmentDate
	between := func(maxDays, minDays int) bool {
		return last != nil &&
			!last.Before(now.Add(-time.Duration(maxDays)*day)) &&
			!last.After(now.Add(-time.Duration(minDays)*day))
	}
	switch {
	case (p.UpcomingAppointmentCount == 0 && between(urgentGapMaxDays, urgentGapMinDays)) ||
		(p.TotalAppointmentCount >= heavyHistoryMinTotal && p.RecentAppointmentCount == 0 &&
			last != nil && last.After(now.Add(-time.Duration(heavyHistoryMaxDays)*day))) ||
		(p.RecentAppointmentCount == 0 && between(urgentGapMinDays, 0)):
		return 1
	case p.RecentAppointmentCount == 0:
		return 2
	case p.UpcomingAppointmentCount == 0:
		return 3
	default:
		return 4
	}
}

// urgencyLess mirrors the full ORDER BY: tier, then last appointment DESC
// with NULLs last, then recent-appointment volume DESC.
func urgencyLess(a, b *Patient, now time.Time) bool {
	ta, tb := urgencyTier(a, now), urgencyTier(b, now)
	if ta != tb {
		return ta < tb
	}
	la, lb := a.LastAppointmentDate, b.LastAppointmentDate
	switch {
	case la == nil && lb == nil:
	case la == nil:
		return false
	case lb == nil:
		return true
	case !la.Equal(*lb):
		return la.After(*lb)
	}
	return a.RecentAppointmentCount > b.RecentAppointmentCount
}

func TestUrgencyTiers(t *testing.T) {
	tests := []struct {
		name                    string
		last                    *time.Time
		recent, upcoming, total int
		tier                    int
	}{
		{"gap window nothing booked", daysAgo(30), 2, 0, 4, 1},
		{"gap window lower bound", daysAgo(21), 2, 0, 4, 1},
		{"gap window upper bound", daysAgo(45), 2, 0, 4, 1},
		{"past gap window", daysAgo(46), 2, 0, 4, 3},
		{"heavy history gone quiet", daysAgo(50), 0, 1, 6, 1},
		{"heavy history too old", daysAgo(100), 0, 1, 6, 2},
		{"just lapsed", daysAgo(10), 0, 1, 2, 1},
		{"long quiet light history", daysAgo(70), 0, 1, 2, 2},
		{"no history no recent", nil, 0, 1, 2, 2},
		{"no history nothing booked", nil, 1, 0, 2, 3},
		{"fully engaged", daysAgo(5), 2, 1, 4, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := snapshot(tc.last, tc.recent, tc.upcoming, tc.total)
			if got := urgencyTier(p, t0); got != tc.tier {
				t.Errorf("tier = %d, want %d", got, tc.tier)
			}
		})
	}
}

// The tier structure over arbitrary snapshots: engaged patients always sink
// to the bottom, patients with no recent activity never rank below tier 2,
// and a patient with no history at all is never urgent.
func TestUrgencyTierInvariants(t *testing.T) {
	for _, p := range sweepPopulation() {
		tier := urgencyTier(p, t0)
		switch {
		case p.RecentAppointmentCount > 0 && p.UpcomingAppointmentCount > 0:
			if tier != 4 {
				t.Errorf("engaged patient (recent=%d upcoming=%d) got tier %d",
					p.RecentAppointmentCount, p.UpcomingAppointmentCount, tier)
			}
		case p.RecentAppointmentCount == 0:
			if tier > 2 {
				t.Errorf("patient with no recent activity got tier %d", tier)
			}
		default:
			if tier != 1 && tier != 3 {
				t.Errorf("patient with nothing booked (last=%v) got tier %d",
					p.LastAppointmentDate, tier)
			}
		}
		if p.LastAppointmentDate == nil && tier == 1 {
			t.Error("patient with no appointment history ranked urgent")
		}
	}
}

func TestListOrderingRanksUrgencyThenRecency(t *testing.T) {
	urgentNewer := snapshot(daysAgo(22), 0, 0, 4)
	urgentOlder := snapshot(daysAgo(25), 0, 0, 4)
	quietDated := snapshot(daysAgo(70), 0, 0, 1)
	quietNoHistory := snapshot(nil, 0, 0, 1)
	lapsedBooked := snapshot(daysAgo(50), 2, 0, 3)
	engagedNewest := snapshot(daysAgo(3), 2, 2, 5)
	sameDay := daysAgo(9)
	engagedBusy := snapshot(sameDay, 5, 1, 9)
	engagedLight := snapshot(sameDay, 1, 1, 2)

	want := []*Patient{
		urgentNewer, urgentOlder,
		quietDated, quietNoHistory,
		lapsedBooked,
		engagedNewest, engagedBusy, engagedLight,
	}

	got := []*Patient{
		engagedLight, quietNoHistory, urgentOlder, engagedBusy,
		lapsedBooked, engagedNewest, quietDated, urgentNewer,
	}
	sort.SliceStable(got, func(i, j int) bool { return urgencyLess(got[i], got[j], t0) })

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got tier=%d last=%v recent=%d, want tier=%d last=%v recent=%d",
				i, urgencyTier(got[i], t0), got[i].LastAppointmentDate, got[i].RecentAppointmentCount,
				urgencyTier(want[i], t0), want[i].LastAppointmentDate, want[i].RecentAppointmentCount)
		}
	}
}

// filterMatch mirrors each filter predicate at timestamp precision with SQL
// null semantics: comparisons against a missing last appointment date are
// false, so only the explicit IS NULL arms admit such rows.
func filterMatch(f Filter, p *Patient, now time.Time) bool {
	day := 24 * time.Hour
	last := p.LastAppointmentDate
	before := func(n int) bool {
		return last != nil && last.Before(now.Add(-time.Duration(n)*day))
	}
	onOrBefore := func(n int) bool {
		return last != nil && !last.After(now.Add(-time.Duration(n)*day))
	}
	after := func(n int) bool {
		return last != nil && last.After(now.Add(-time.Duration(n)*day))
	}
	between := func(maxDays, minDays int) bool {
		return last != nil &&
			!last.Before(now.Add(-time.Duration(maxDays)*day)) &&
			!last.After(now.Add(-time.Duration(minDays)*day))
	}
	switch f {
	case FilterAll:
		return true
	case FilterHigh:
		return before(atRiskWindowDays)
	case FilterMedium:
		return p.UpcomingAppointmentCount == 0 || last == nil ||
			between(atRiskWindowDays, activeWindowDays)
	case FilterLow:
		return p.UpcomingAppointmentCount > 0 && (last == nil || after(activeWindowDays))
	case FilterRecent:
		return p.RecentAppointmentCount > 0
	case FilterUpcoming:
		return p.UpcomingAppointmentCount > 0
	case FilterInactive:
		return p.RecentAppointmentCount == 0 && p.UpcomingAppointmentCount == 0
	case FilterActive:
		return p.RecentAppointmentCount > 0 || p.UpcomingAppointmentCount > 0
	case FilterAtRisk:
		return between(atRiskWindowDays, activeWindowDays)
	case FilterDormant:
		return between(dormantWindowDays, atRiskWindowDays)
	case FilterChurned:
		return before(dormantWindowDays)
	case FilterHighValueAtRisk:
		return p.TotalAppointmentCount >= establishedMinTotal &&
			p.RecentAppointmentCount == 0 && p.UpcomingAppointmentCount == 0 &&
			between(dormantWindowDays, activeWindowDays)
	case FilterImmediateRebooking:
		return (between(atRiskWindowDays, activeWindowDays) && p.UpcomingAppointmentCount == 0) ||
			(p.TotalAppointmentCount >= establishedMinTotal &&
				p.RecentAppointmentCount == 0 && onOrBefore(activeWindowDays))
	case FilterTreatmentBuilding:
		return p.RecentAppointmentCount >= buildingMinRecent && p.UpcomingAppointmentCount > 0
	case FilterTreatmentDeclining:
		return p.RecentAppointmentCount > 0 && p.UpcomingAppointmentCount == 0
	}
	return false
}

// Each token must select exactly the documented slice of the population.
// The day-window filters run on raw elapsed time, not the classifier's
// whole-day floor, so the oracle here works in durations.
func TestFilterPredicatesSelectDocumentedSubsets(t *testing.T) {
	day := 24 * time.Hour
	for _, p := range sweepPopulation() {
		cls := Classify(p, t0)
		hasLast := p.LastAppointmentDate != nil
		var elapsed time.Duration
		if hasLast {
			elapsed = t0.Sub(*p.LastAppointmentDate)
		}

		checks := []struct {
			f    Filter
			want bool
		}{
			{FilterHigh, hasLast && elapsed > time.Duration(atRiskWindowDays)*day},
			{FilterChurned, hasLast && elapsed > time.Duration(dormantWindowDays)*day},
			{FilterAtRisk, hasLast &&
				elapsed >= time.Duration(activeWindowDays)*day &&
				elapsed <= time.Duration(atRiskWindowDays)*day},
			{FilterDormant, hasLast &&
				elapsed >= time.Duration(atRiskWindowDays)*day &&
				elapsed <= time.Duration(dormantWindowDays)*day},
			{FilterRecent, p.RecentAppointmentCount > 0},
			{FilterUpcoming, p.UpcomingAppointmentCount > 0},
			{FilterInactive, p.RecentAppointmentCount == 0 && p.UpcomingAppointmentCount == 0},
			{FilterActive, p.RecentAppointmentCount > 0 || p.UpcomingAppointmentCount > 0},
			{FilterTreatmentBuilding, cls.TreatmentMomentum == MomentumBuilding},
			{FilterTreatmentDeclining, cls.TreatmentMomentum == MomentumDeclining},
		}
		for _, c := range checks {
			if got := filterMatch(c.f, p, t0); got != c.want {
				t.Errorf("filter %s on last=%v recent=%d upcoming=%d total=%d: got %v, want %v",
					c.f, p.LastAppointmentDate, p.RecentAppointmentCount,
					p.UpcomingAppointmentCount, p.TotalAppointmentCount, got, c.want)
			}
		}

		// high_value_at_risk is established + inactive + inside the
		// at-risk-through-dormant window, and always qualifies for
		// immediate rebooking.
		if filterMatch(FilterHighValueAtRisk, p, t0) {
			if !filterMatch(FilterInactive, p, t0) ||
				p.TotalAppointmentCount < establishedMinTotal ||
				!(filterMatch(FilterAtRisk, p, t0) || filterMatch(FilterDormant, p, t0)) {
				t.Errorf("high_value_at_risk matched outside its documented subset: last=%v recent=%d upcoming=%d total=%d",
					p.LastAppointmentDate, p.RecentAppointmentCount,
					p.UpcomingAppointmentCount, p.TotalAppointmentCount)
			}
			if !filterMatch(FilterImmediateRebooking, p, t0) {
				t.Errorf("high_value_at_risk patient not surfaced for immediate rebooking: last=%v total=%d",
					p.LastAppointmentDate, p.TotalAppointmentCount)
			}
		}

		// The priority tokens together cover everyone.
		if !filterMatch(FilterHigh, p, t0) && !filterMatch(FilterMedium, p, t0) &&
			!filterMatch(FilterLow, p, t0) {
			t.Errorf("patient in no priority bucket: last=%v upcoming=%d",
				p.LastAppointmentDate, p.UpcomingAppointmentCount)
		}
	}
}

func TestFilterTokensAllMatchSomeone(t *testing.T) {
	pop := sweepPopulation()
	for f := range filterPredicates {
		if f == FilterAll {
			continue
		}
		n := 0
		for _, p := range pop {
			if filterMatch(f, p, t0) {
				n++
			}
		}
		if n == 0 {
			t.Errorf("filter %s matched nothing in the sweep population", f)
		}
		if n == len(pop) {
			t.Errorf("filter %s matched the entire sweep population", f)
		}
	}
}
