package optimizer

import "github.com/kilianp07/railsched/core/model"

// buildSchedule turns an ordering into per-train section visits. delay
// receives the train's position and its index.
func buildSchedule(p *Problem, order []int, delay func(pos, train int) float64) (model.Schedule, []string) {
	sched := make(model.Schedule, len(order))
	ids := make([]string, 0, len(order))
	for pos, i := range order {
		ti := p.trains[i]
		d := delay(pos, i)
		visits := make([]model.SectionVisit, 0, len(ti.usages))
		for _, u := range ti.usages {
			visits = append(visits, model.SectionVisit{
				SectionID:  u.SectionID,
				Entry:      u.Entry,
				Exit:       u.Exit,
				DelayAdded: d,
			})
		}
		sched[ti.train.ID] = visits
		ids = append(ids, ti.train.ID)
	}
	return sched, ids
}

// positionDelay returns a placeholder delay of factor minutes per position.
func positionDelay(factor float64) func(pos, _ int) float64 {
	return func(pos, _ int) float64 { return float64(pos) * factor }
}

// ScheduleFromOrder builds a successful result from an ordering of train ids,
// each train carrying factor × position minutes of placeholder delay.
func ScheduleFromOrder(p *Problem, method string, order []string, factor float64) (model.OptimizationResult, error) {
	idx, err := p.toIndices(order)
	if err != nil {
		return model.Failed(method, err), err
	}
	res := model.NewResult(method)
	res.Schedule, res.Order = buildSchedule(p, idx, positionDelay(factor))
	res.Throughput = p.Len()
	res.Success = true
	return res, nil
}
