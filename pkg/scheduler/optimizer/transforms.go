package optimizer

import (
	"context"

	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler/constraint"
)

// fillGaps 为每个空槽位先尝试直接补位，失败时尝试有限深度的位移链
func (im *Improver) fillGaps(c *constraint.Context) int {
	accepted := 0
	for day := 0; day < c.Calendar.Len(); day++ {
		slots := c.Calendar.Day(day).Slots
		for post := 0; post < slots; post++ {
			if c.WorkerAt(day, post) != model.EmptySlot {
				continue
			}
			if im.fillDirect(c, day, post) || im.fillByDisplacement(c, day, post, maxChainDepth) {
				accepted++
			}
		}
	}
	return accepted
}

// fillDirect 以目标函数下降最多的可行人选直接补位
func (im *Improver) fillDirect(c *constraint.Context, day, post int) bool {
	bestJ := Objective(c)
	bestID := model.EmptySlot

	for _, w := range c.Workers {
		ok, _, _ := im.manager.CanAssign(c, w.ID, day, post)
		if !ok {
			continue
		}
		c.Assign(w.ID, day, post)
		if j := Objective(c); j < bestJ {
			bestJ = j
			bestID = w.ID
		}
		c.Unassign(day, post)
	}

	if bestID == model.EmptySlot {
		return false
	}
	c.Assign(bestID, day, post)
	return true
}

// fillByDisplacement 位移链补位：把他日的某个非强制值班挪进空槽，
// 再递归填补挪空的槽位，depth 为剩余可用的位移次数
func (im *Improver) fillByDisplacement(c *constraint.Context, day, post, depth int) bool {
	if depth <= 0 {
		return false
	}

	for src := 0; src < c.Calendar.Len(); src++ {
		if src == day {
			continue
		}
		srcSlots := c.Calendar.Day(src).Slots
		for srcPost := 0; srcPost < srcSlots; srcPost++ {
			id := c.WorkerAt(src, srcPost)
			if id == model.EmptySlot || c.IsMandatory(id, src) {
				continue
			}

			c.Unassign(src, srcPost)
			ok, _, _ := im.manager.CanAssign(c, id, day, post)
			if !ok {
				c.Assign(id, src, srcPost)
				continue
			}
			c.Assign(id, day, post)

			if im.fillDirect(c, src, srcPost) || im.fillByDisplacement(c, src, srcPost, depth-1) {
				return true
			}

			// 链条走不通，回退本次位移
			c.Unassign(day, post)
			c.Assign(id, src, srcPost)
		}
	}
	return false
}

// transferShifts 把超额人员的非强制值班转给欠额且可行的人员
func (im *Improver) transferShifts(c *constraint.Context) int {
	accepted := 0
	for _, over := range c.Workers {
		if c.Count(over.ID) <= c.Targets[over.ID] {
			continue
		}
		days := append([]int(nil), c.AssignedDays(over.ID)...)
		for _, day := range days {
			if c.Count(over.ID) <= c.Targets[over.ID] {
				break
			}
			if c.IsMandatory(over.ID, day) {
				continue
			}
			post := c.PostOf(day, over.ID)
			if post < 0 {
				continue
			}
			if im.transferTo(c, over.ID, day, post) {
				accepted++
			}
		}
	}
	return accepted
}

// transferTo 将 (day, post) 上的值班转给目标函数下降最多的欠额人员
func (im *Improver) transferTo(c *constraint.Context, fromID string, day, post int) bool {
	before := Objective(c)
	c.Unassign(day, post)

	bestJ := before
	bestID := model.EmptySlot
	for _, w := range c.Workers {
		if w.ID == fromID || c.Count(w.ID) >= c.Targets[w.ID] {
			continue
		}
		ok, _, _ := im.manager.CanAssign(c, w.ID, day, post)
		if !ok {
			continue
		}
		c.Assign(w.ID, day, post)
		if j := Objective(c); j < bestJ {
			bestJ = j
			bestID = w.ID
		}
		c.Unassign(day, post)
	}

	if bestID == model.EmptySlot {
		c.Assign(fromID, day, post)
		return false
	}
	c.Assign(bestID, day, post)
	return true
}

// exchangeShifts 在两名人员之间对调两天的值班
func (im *Improver) exchangeShifts(c *constraint.Context) int {
	accepted := 0
	for i := 0; i < len(c.Workers); i++ {
		for j := i + 1; j < len(c.Workers); j++ {
			if im.exchangeBetween(c, c.Workers[i].ID, c.Workers[j].ID) {
				accepted++
			}
		}
	}
	return accepted
}

// exchangeBetween 寻找 a、b 之间第一对双向可行且使目标函数严格下降的互换
func (im *Improver) exchangeBetween(c *constraint.Context, aID, bID string) bool {
	before := Objective(c)
	daysA := append([]int(nil), c.AssignedDays(aID)...)
	daysB := append([]int(nil), c.AssignedDays(bID)...)

	for _, da := range daysA {
		if c.IsMandatory(aID, da) {
			continue
		}
		pa := c.PostOf(da, aID)
		if pa < 0 {
			continue
		}
		for _, db := range daysB {
			if db == da || c.IsMandatory(bID, db) {
				continue
			}
			if c.HasWorkerOn(da, bID) || c.HasWorkerOn(db, aID) {
				continue
			}
			pb := c.PostOf(db, bID)
			if pb < 0 {
				continue
			}

			c.Unassign(da, pa)
			c.Unassign(db, pb)
			okB, _, _ := im.manager.CanAssign(c, bID, da, pa)
			okA, _, _ := im.manager.CanAssign(c, aID, db, pb)
			if okA && okB {
				c.Assign(bID, da, pa)
				c.Assign(aID, db, pb)
				if Objective(c) < before {
					return true
				}
				c.Unassign(da, pa)
				c.Unassign(db, pb)
			}
			c.Assign(aID, da, pa)
			c.Assign(bID, db, pb)
		}
	}
	return false
}

// rebalanceLastPosts 收尾微调：反复执行末槽位扫描直到无改进或达到迭代上限
func (im *Improver) rebalanceLastPosts(ctx context.Context, c *constraint.Context) int {
	iterations := 0
	for iterations < lastPostMaxIterations {
		if ctx.Err() != nil {
			break
		}
		iterations++
		if im.lastPostSweep(c) == 0 {
			break
		}
	}
	return iterations
}

// lastPostSweep 扫描一轮同日换槽，接受所有使目标函数下降的交换
// 同日换槽不改变任何人的值班日，日级硬约束必然保持，
// 仅末槽位分布随之变化
func (im *Improver) lastPostSweep(c *constraint.Context) int {
	accepted := 0
	for day := 0; day < c.Calendar.Len(); day++ {
		slots := c.Calendar.Day(day).Slots
		if slots < 2 {
			continue
		}
		last := slots - 1
		for post := 0; post < last; post++ {
			a := c.WorkerAt(day, post)
			b := c.WorkerAt(day, last)
			if a == model.EmptySlot || b == model.EmptySlot {
				continue
			}

			before := Objective(c)
			c.Unassign(day, post)
			c.Unassign(day, last)
			c.Assign(b, day, post)
			c.Assign(a, day, last)
			if Objective(c) < before {
				accepted++
				continue
			}
			c.Unassign(day, post)
			c.Unassign(day, last)
			c.Assign(a, day, post)
			c.Assign(b, day, last)
		}
	}
	return accepted
}
