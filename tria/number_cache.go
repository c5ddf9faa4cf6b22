package tria

// LevelCount holds the cell counts of one level
type LevelCount struct {
	Used, Active int
}

// ObjectCount holds the counts of level-free objects of one dimension
type ObjectCount struct {
	Used, Active int
}

// NumberCache holds the counts answered in O(1). It is rebuilt after every
// structural change.
type NumberCache struct {
	NLevels       int
	NUsedVertices int
	NCells        int
	NActiveCells  int
	Levels        []LevelCount
	Objects       [3]ObjectCount // by structural dimension 1..dim-1
}

func (t *Triangulation) updateNumberCache() {
	c := NumberCache{NLevels: len(t.levels), Levels: make([]LevelCount, len(t.levels))}
	for l, lvl := range t.levels {
		for i, used := range lvl.Cells.Used {
			if !used {
				continue
			}
			c.Levels[l].Used++
			if !lvl.Cells.hasChildren(i) {
				c.Levels[l].Active++
			}
		}
		c.NCells += c.Levels[l].Used
		c.NActiveCells += c.Levels[l].Active
	}
	for k := 1; k < t.dim; k++ {
		store := t.objects[k]
		for i, used := range store.Used {
			if !used {
				continue
			}
			c.Objects[k].Used++
			if !store.hasChildren(i) {
				c.Objects[k].Active++
			}
		}
	}
	for _, u := range t.vertexUsed {
		if u {
			c.NUsedVertices++
		}
	}
	t.cache = c
}

// NumberCache returns a copy of the cached counts
func (t *Triangulation) NumberCache() NumberCache {
	c := t.cache
	c.Levels = append([]LevelCount(nil), t.cache.Levels...)
	return c
}

func (t *Triangulation) NLevels() int       { return t.cache.NLevels }
func (t *Triangulation) NCells() int        { return t.cache.NCells }
func (t *Triangulation) NActiveCells() int  { return t.cache.NActiveCells }
func (t *Triangulation) NUsedVertices() int { return t.cache.NUsedVertices }

func (t *Triangulation) NCellsOnLevel(level int) (int, error) {
	if err := t.checkLevel(level); err != nil {
		return 0, err
	}
	return t.cache.Levels[level].Used, nil
}

func (t *Triangulation) NActiveCellsOnLevel(level int) (int, error) {
	if err := t.checkLevel(level); err != nil {
		return 0, err
	}
	return t.cache.Levels[level].Active, nil
}

// NObjects returns the used and active counts of objects of structural
// dimension k. For k equal to the mesh dimension these are the cells; in
// 1D, k = 0 counts used vertices, which are the faces.
func (t *Triangulation) NObjects(k int) (used, active int) {
	switch {
	case k == t.dim:
		return t.cache.NCells, t.cache.NActiveCells
	case k == 0:
		return t.cache.NUsedVertices, t.cache.NUsedVertices
	case k > 0 && k < t.dim:
		return t.cache.Objects[k].Used, t.cache.Objects[k].Active
	}
	return 0, 0
}

// NFaces returns the number of used faces
func (t *Triangulation) NFaces() int {
	used, _ := t.NObjects(t.dim - 1)
	return used
}

// NActiveFaces returns the number of faces without children
func (t *Triangulation) NActiveFaces() int {
	_, active := t.NObjects(t.dim - 1)
	return active
}

// NLines returns the number of used lines
func (t *Triangulation) NLines() int {
	used, _ := t.NObjects(1)
	return used
}

// NActiveLines returns the number of lines without children
func (t *Triangulation) NActiveLines() int {
	_, active := t.NObjects(1)
	return active
}
