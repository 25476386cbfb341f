package swap

import (
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// directTransfers 枚举超额方可直接转给缺额方的班次
// 强制值班日不可转让
func (s *Suggester) directTransfers(c *constraint.Context, o, u imbalance, improvement int) []Suggestion {
	var out []Suggestion
	days := append([]int(nil), c.AssignedDays(o.workerID)...)
	for _, day := range days {
		if c.IsMandatory(o.workerID, day) {
			continue
		}
		post := c.PostOf(day, o.workerID)
		if post < 0 {
			continue
		}
		if s.canReplace(c, day, post, o.workerID, u.workerID) {
			out = append(out, Suggestion{
				Type:        TypeTransfer,
				FromWorker:  o.workerID,
				ToWorker:    u.workerID,
				Date:        c.Calendar.DateOf(day),
				Post:        post,
				Improvement: improvement,
				Reason:      transferReason(o, u),
			})
		}
	}
	return out
}

// mutualExchanges 枚举双方可互换的班次对
func (s *Suggester) mutualExchanges(c *constraint.Context, o, u imbalance, improvement int) []Suggestion {
	var out []Suggestion
	daysO := append([]int(nil), c.AssignedDays(o.workerID)...)
	daysU := append([]int(nil), c.AssignedDays(u.workerID)...)

	for _, d1 := range daysO {
		if c.IsMandatory(o.workerID, d1) {
			continue
		}
		p1 := c.PostOf(d1, o.workerID)
		if p1 < 0 {
			continue
		}
		for _, d2 := range daysU {
			if d1 == d2 || c.IsMandatory(u.workerID, d2) {
				continue
			}
			if c.HasWorkerOn(d1, u.workerID) || c.HasWorkerOn(d2, o.workerID) {
				continue
			}
			p2 := c.PostOf(d2, u.workerID)
			if p2 < 0 {
				continue
			}
			if s.canExchange(c, o.workerID, d1, p1, u.workerID, d2, p2) {
				out = append(out, Suggestion{
					Type:         TypeExchange,
					FromWorker:   o.workerID,
					ToWorker:     u.workerID,
					Date:         c.Calendar.DateOf(d1),
					Post:         p1,
					ExchangeDate: c.Calendar.DateOf(d2),
					ExchangePost: p2,
					Improvement:  improvement,
					Reason:       exchangeReason(o, u),
				})
			}
		}
	}
	return out
}

// canReplace 探测将 (day, post) 上的 fromID 换成 toID 是否满足硬约束
// 探测后立即还原
func (s *Suggester) canReplace(c *constraint.Context, day, post int, fromID, toID string) bool {
	c.Unassign(day, post)
	ok, _, _ := s.manager.CanAssign(c, toID, day, post)
	c.Assign(fromID, day, post)
	return ok
}

// canExchange 探测互换是否双向满足硬约束，探测后还原
func (s *Suggester) canExchange(c *constraint.Context, aID string, d1, p1 int, bID string, d2, p2 int) bool {
	c.Unassign(d1, p1)
	c.Unassign(d2, p2)

	feasible := false
	if ok, _, _ := s.manager.CanAssign(c, bID, d1, p1); ok {
		c.Assign(bID, d1, p1)
		if ok2, _, _ := s.manager.CanAssign(c, aID, d2, p2); ok2 {
			feasible = true
		}
		c.Unassign(d1, p1)
	}

	c.Assign(aID, d1, p1)
	c.Assign(bID, d2, p2)
	return feasible
}

// Apply 将建议应用到上下文
// 应用前重新校验：值班表自建议生成后可能已被编辑
func (s *Suggester) Apply(c *constraint.Context, sg Suggestion) error {
	day, ok := c.Calendar.IndexOf(sg.Date)
	if !ok {
		return errors.InvalidInput("date", "日期 "+sg.Date+" 不在排班周期内")
	}
	if c.WorkerAt(day, sg.Post) != sg.FromWorker {
		return errors.New(errors.CodeConflictPending, "值班表已变化，建议失效")
	}

	switch sg.Type {
	case TypeTransfer:
		if !s.canReplace(c, day, sg.Post, sg.FromWorker, sg.ToWorker) {
			return errors.New(errors.CodeConstraintViolation, "换班建议不再可行")
		}
		c.Unassign(day, sg.Post)
		c.Assign(sg.ToWorker, day, sg.Post)

	case TypeExchange:
		d2, ok := c.Calendar.IndexOf(sg.ExchangeDate)
		if !ok {
			return errors.InvalidInput("exchange_date", "日期 "+sg.ExchangeDate+" 不在排班周期内")
		}
		if c.WorkerAt(d2, sg.ExchangePost) != sg.ToWorker {
			return errors.New(errors.CodeConflictPending, "值班表已变化，建议失效")
		}
		if !s.canExchange(c, sg.FromWorker, day, sg.Post, sg.ToWorker, d2, sg.ExchangePost) {
			return errors.New(errors.CodeConstraintViolation, "换班建议不再可行")
		}
		c.Unassign(day, sg.Post)
		c.Unassign(d2, sg.ExchangePost)
		c.Assign(sg.ToWorker, day, sg.Post)
		c.Assign(sg.FromWorker, d2, sg.ExchangePost)

	default:
		return errors.InvalidInput("type", "未知建议类型 "+string(sg.Type))
	}
	return nil
}
