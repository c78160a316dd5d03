package selection

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/agentstation/stagehand/pkg/errors"
)

// Cell is one selectable permission: the id granted for a row (resource)
// and column (action). Grids may have holes.
type Cell[K cmp.Ordered] struct {
	Row    string `json:"row" yaml:"row"`
	Column string `json:"column" yaml:"column"`
	ID     K      `json:"id" yaml:"id"`
}

type cellKey struct {
	row, column string
}

// Matrix is a permission grid selected by cell, row, column or all at once.
type Matrix[K cmp.Ordered] struct {
	cells   map[cellKey]K
	rows    []string
	columns []string
	byRow   map[string][]K
	byCol   map[string][]K
	all     []K
	set     *Set[K]
}

// NewMatrix builds a grid from cells and the initially granted ids. It fails
// with ErrInvalidInput when a cell position or id repeats, or when an initial
// id is not in the grid.
func NewMatrix[K cmp.Ordered](cells []Cell[K], initial []K) (*Matrix[K], error) {
	m := &Matrix[K]{
		cells: make(map[cellKey]K, len(cells)),
		byRow: make(map[string][]K),
		byCol: make(map[string][]K),
	}

	ids := make(map[K]struct{}, len(cells))
	for _, c := range cells {
		key := cellKey{c.Row, c.Column}
		if _, dup := m.cells[key]; dup {
			return nil, errors.NewValidationError("cell", c, fmt.Sprintf("duplicate cell %s/%s", c.Row, c.Column))
		}
		if _, dup := ids[c.ID]; dup {
			return nil, errors.NewValidationError("id", c.ID, fmt.Sprintf("id %v used by more than one cell", c.ID))
		}
		m.cells[key] = c.ID
		ids[c.ID] = struct{}{}

		if _, seen := m.byRow[c.Row]; !seen {
			m.rows = append(m.rows, c.Row)
		}
		if _, seen := m.byCol[c.Column]; !seen {
			m.columns = append(m.columns, c.Column)
		}
		m.byRow[c.Row] = append(m.byRow[c.Row], c.ID)
		m.byCol[c.Column] = append(m.byCol[c.Column], c.ID)
		m.all = append(m.all, c.ID)
	}

	for _, id := range initial {
		if _, ok := ids[id]; !ok {
			return nil, errors.NewValidationError("selected", id, fmt.Sprintf("%v is not a cell of the grid", id))
		}
	}
	m.set = New(initial)
	return m, nil
}

// Rows returns row names in first-seen order.
func (m *Matrix[K]) Rows() []string {
	return slices.Clone(m.rows)
}

// Columns returns column names in first-seen order.
func (m *Matrix[K]) Columns() []string {
	return slices.Clone(m.columns)
}

// Cell returns the id at row and column.
func (m *Matrix[K]) Cell(row, column string) (K, bool) {
	id, ok := m.cells[cellKey{row, column}]
	return id, ok
}

// IsSelected reports whether the cell at row and column is granted.
func (m *Matrix[K]) IsSelected(row, column string) bool {
	id, ok := m.Cell(row, column)
	return ok && m.set.IsSelected(id)
}

// Toggle flips the cell at row and column.
func (m *Matrix[K]) Toggle(row, column string) (bool, error) {
	id, ok := m.Cell(row, column)
	if !ok {
		return false, errors.NewNotFoundError("cell", row+"/"+column)
	}
	return m.set.Toggle(id), nil
}

// SelectRow grants or revokes every cell of a row.
func (m *Matrix[K]) SelectRow(row string, selected bool) error {
	ids, ok := m.byRow[row]
	if !ok {
		return errors.NewNotFoundError("row", row)
	}
	m.set.SetMany(ids, selected)
	return nil
}

// SelectColumn grants or revokes every cell of a column.
func (m *Matrix[K]) SelectColumn(column string, selected bool) error {
	ids, ok := m.byCol[column]
	if !ok {
		return errors.NewNotFoundError("column", column)
	}
	m.set.SetMany(ids, selected)
	return nil
}

// SelectAll grants or revokes every cell of the given rows, or of the whole
// grid when no rows are given. Filtered views pass their visible rows.
func (m *Matrix[K]) SelectAll(selected bool, rows ...string) error {
	if len(rows) == 0 {
		m.set.SetMany(m.all, selected)
		return nil
	}
	for _, row := range rows {
		if _, ok := m.byRow[row]; !ok {
			return errors.NewNotFoundError("row", row)
		}
	}
	for _, row := range rows {
		m.set.SetMany(m.byRow[row], selected)
	}
	return nil
}

// RowState derives the checkbox state of a row header.
func (m *Matrix[K]) RowState(row string) (State, error) {
	ids, ok := m.byRow[row]
	if !ok {
		return "", errors.NewNotFoundError("row", row)
	}
	return stateOf(m.set.CountSelected(ids), len(ids)), nil
}

// ColumnState derives the checkbox state of a column header.
func (m *Matrix[K]) ColumnState(column string) (State, error) {
	ids, ok := m.byCol[column]
	if !ok {
		return "", errors.NewNotFoundError("column", column)
	}
	return stateOf(m.set.CountSelected(ids), len(ids)), nil
}

// State derives the state of the select-all checkbox.
func (m *Matrix[K]) State() State {
	return stateOf(m.set.CountSelected(m.all), len(m.all))
}

// Selected returns the granted ids, sorted.
func (m *Matrix[K]) Selected() []K {
	return m.set.Selected()
}

// Diff returns the ids to grant and revoke.
func (m *Matrix[K]) Diff() Diff[K] {
	return m.set.Diff()
}

// IsDirty reports whether any grant changed.
func (m *Matrix[K]) IsDirty() bool {
	return m.set.IsDirty()
}

// Reset restores the initial grants.
func (m *Matrix[K]) Reset() {
	m.set.Reset()
}

// Rebase replaces the initial grants, as after a successful save.
func (m *Matrix[K]) Rebase(selected []K) {
	m.set.Rebase(selected)
}
