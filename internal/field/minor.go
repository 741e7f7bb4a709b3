package field

import (
	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/ids"
)

// AffectedArea, Employee, MessageBox, OpenGate and TownPortal are the
// remaining field pool kinds named by spec §4.6's fixed enter order.
// None carry combat or controller state, so each is a thin PoolItem
// wrapping a plain generic Pool.

type AffectedArea struct {
	Pos      Point
	SkillID  int
	DeadlineAt delayqueue.GameTime
}

func (a *AffectedArea) EnterMsg() any                  { return AffectedAreaEnter{Pos: a.Pos, SkillID: a.SkillID} }
func (a *AffectedArea) LeaveMsg(reason LeaveReason) any { return AffectedAreaLeave{} }

type AffectedAreaEnter struct {
	Pos     Point
	SkillID int
}
type AffectedAreaLeave struct{}

type AffectedAreaPool struct{ pool *Pool[*AffectedArea] }

func NewAffectedAreaPool() *AffectedAreaPool { return &AffectedAreaPool{pool: NewPool[*AffectedArea]()} }
func (p *AffectedAreaPool) Insert(tx Broadcaster, a *AffectedArea) ids.ObjectId {
	return p.pool.Insert(tx, a)
}
func (p *AffectedAreaPool) Remove(tx Broadcaster, id ids.ObjectId) (*AffectedArea, bool) {
	return p.pool.Remove(tx, id, LeaveTimeout)
}
func (p *AffectedAreaPool) Items(fn func(id ids.ObjectId, a *AffectedArea)) { p.pool.Items(fn) }

type Employee struct {
	OwnerID ids.CharacterId
	Pos     Point
	Title   string
}

func (e *Employee) EnterMsg() any                  { return EmployeeEnter{Pos: e.Pos, Title: e.Title} }
func (e *Employee) LeaveMsg(reason LeaveReason) any { return EmployeeLeave{} }

type EmployeeEnter struct {
	Pos   Point
	Title string
}
type EmployeeLeave struct{}

type EmployeePool struct{ pool *Pool[*Employee] }

func NewEmployeePool() *EmployeePool { return &EmployeePool{pool: NewPool[*Employee]()} }
func (p *EmployeePool) Insert(tx Broadcaster, e *Employee) ids.ObjectId { return p.pool.Insert(tx, e) }
func (p *EmployeePool) Items(fn func(id ids.ObjectId, e *Employee))     { p.pool.Items(fn) }

type MessageBox struct {
	OwnerID ids.CharacterId
	Pos     Point
	Text    string
}

func (m *MessageBox) EnterMsg() any                  { return MessageBoxEnter{Pos: m.Pos, Text: m.Text} }
func (m *MessageBox) LeaveMsg(reason LeaveReason) any { return MessageBoxLeave{} }

type MessageBoxEnter struct {
	Pos  Point
	Text string
}
type MessageBoxLeave struct{}

type MessageBoxPool struct{ pool *Pool[*MessageBox] }

func NewMessageBoxPool() *MessageBoxPool { return &MessageBoxPool{pool: NewPool[*MessageBox]()} }
func (p *MessageBoxPool) Insert(tx Broadcaster, m *MessageBox) ids.ObjectId {
	return p.pool.Insert(tx, m)
}
func (p *MessageBoxPool) Items(fn func(id ids.ObjectId, m *MessageBox)) { p.pool.Items(fn) }

type OpenGate struct {
	OwnerID ids.CharacterId
	Pos     Point
}

func (g *OpenGate) EnterMsg() any                  { return OpenGateEnter{Pos: g.Pos} }
func (g *OpenGate) LeaveMsg(reason LeaveReason) any { return OpenGateLeave{} }

type OpenGateEnter struct{ Pos Point }
type OpenGateLeave struct{}

type OpenGatePool struct{ pool *Pool[*OpenGate] }

func NewOpenGatePool() *OpenGatePool { return &OpenGatePool{pool: NewPool[*OpenGate]()} }
func (p *OpenGatePool) Insert(tx Broadcaster, g *OpenGate) ids.ObjectId { return p.pool.Insert(tx, g) }
func (p *OpenGatePool) Items(fn func(id ids.ObjectId, g *OpenGate))     { p.pool.Items(fn) }

type TownPortal struct {
	OwnerID   ids.CharacterId
	Pos       Point
	TargetMap ids.FieldId
}

func (t *TownPortal) EnterMsg() any                  { return TownPortalEnter{Pos: t.Pos} }
func (t *TownPortal) LeaveMsg(reason LeaveReason) any { return TownPortalLeave{} }

type TownPortalEnter struct{ Pos Point }
type TownPortalLeave struct{}

type TownPortalPool struct{ pool *Pool[*TownPortal] }

func NewTownPortalPool() *TownPortalPool { return &TownPortalPool{pool: NewPool[*TownPortal]()} }
func (p *TownPortalPool) Insert(tx Broadcaster, t *TownPortal) ids.ObjectId {
	return p.pool.Insert(tx, t)
}
func (p *TownPortalPool) Get(id ids.ObjectId) (*TownPortal, bool) { return p.pool.Get(id) }
func (p *TownPortalPool) Items(fn func(id ids.ObjectId, t *TownPortal)) { p.pool.Items(fn) }
