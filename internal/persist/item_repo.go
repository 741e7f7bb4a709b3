package persist

import (
	"context"
	"encoding/json"

	"github.com/l1jgo/server/internal/ids"
)

// EquipItemRow is one persisted equip-slot item: base stats plus the
// upgrade/slot/star/option/socket/durability/owner fields spec §6 names.
type EquipItemRow struct {
	ID         int32
	OwnerName  string
	ItemID     ids.ItemId
	Slot       int32
	Upgrades   int16
	Slots      int16
	Stars      int16
	Durability int16
	Options    []int32
	Sockets    []int32
}

// StackItemRow is one persisted stackable item: quantity plus flags.
type StackItemRow struct {
	ID        int32
	OwnerName string
	ItemID    ids.ItemId
	Slot      int32
	Quantity  int32
	Flags     int32
}

type itemDetail struct {
	Upgrades   int16   `json:"upgrades,omitempty"`
	Slots      int16   `json:"slots,omitempty"`
	Stars      int16   `json:"stars,omitempty"`
	Durability int16   `json:"durability,omitempty"`
	Options    []int32 `json:"options,omitempty"`
	Sockets    []int32 `json:"sockets,omitempty"`
	Flags      int32   `json:"flags,omitempty"`
}

type ItemRepo struct {
	db *DB
}

func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// LoadEquipped returns every equipped item belonging to owner.
func (r *ItemRepo) LoadEquipped(ctx context.Context, ownerName string) ([]EquipItemRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, owner_name, item_id, slot, detail FROM items
		 WHERE owner_name = $1 AND equipped = true`, ownerName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquipItemRow
	for rows.Next() {
		var row EquipItemRow
		var itemID int32
		var raw []byte
		if err := rows.Scan(&row.ID, &row.OwnerName, &itemID, &row.Slot, &raw); err != nil {
			return nil, err
		}
		row.ItemID = ids.ItemId(itemID)
		var d itemDetail
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &d); err != nil {
				return nil, err
			}
		}
		row.Upgrades, row.Slots, row.Stars, row.Durability = d.Upgrades, d.Slots, d.Stars, d.Durability
		row.Options, row.Sockets = d.Options, d.Sockets
		out = append(out, row)
	}
	return out, rows.Err()
}

// CreateEquip inserts a new equip-slot item and reports its assigned row id.
func (r *ItemRepo) CreateEquip(ctx context.Context, row *EquipItemRow) error {
	detail, err := json.Marshal(itemDetail{
		Upgrades: row.Upgrades, Slots: row.Slots, Stars: row.Stars,
		Durability: row.Durability, Options: row.Options, Sockets: row.Sockets,
	})
	if err != nil {
		return err
	}
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO items (owner_name, item_id, slot, quantity, equipped, detail)
		 VALUES ($1, $2, $3, 1, true, $4) RETURNING id`,
		row.OwnerName, int32(row.ItemID), row.Slot, detail,
	).Scan(&row.ID)
}

// NewStackItem inserts a new stackable item and reports its assigned row id.
func (r *ItemRepo) NewStackItem(ctx context.Context, ownerName string, itemID ids.ItemId, slot int32, qty int32) (*StackItemRow, error) {
	row := &StackItemRow{OwnerName: ownerName, ItemID: itemID, Slot: slot, Quantity: qty}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO items (owner_name, item_id, slot, quantity, equipped, detail)
		 VALUES ($1, $2, $3, $4, false, '{}') RETURNING id`,
		ownerName, int32(itemID), slot, qty,
	).Scan(&row.ID)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// StarterItem describes one entry of a job's starter equipment set.
type StarterItem struct {
	ItemID ids.ItemId
	Slot   int32
	Qty    int32
	Equip  bool
}

// CreateStarterSet inserts every item in set for a freshly created
// character, in order, and returns the assigned row ids.
func (r *ItemRepo) CreateStarterSet(ctx context.Context, ownerName string, set []StarterItem) ([]int32, error) {
	ids_ := make([]int32, 0, len(set))
	for _, it := range set {
		if it.Equip {
			row := &EquipItemRow{OwnerName: ownerName, ItemID: it.ItemID, Slot: it.Slot}
			if err := r.CreateEquip(ctx, row); err != nil {
				return nil, err
			}
			ids_ = append(ids_, row.ID)
			continue
		}
		row, err := r.NewStackItem(ctx, ownerName, it.ItemID, it.Slot, it.Qty)
		if err != nil {
			return nil, err
		}
		ids_ = append(ids_, row.ID)
	}
	return ids_, nil
}
