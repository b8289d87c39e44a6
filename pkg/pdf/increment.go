package pdf

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// AppendIncrement adds every page of srcs after the pages of dst and returns
// original followed by one update section: the rewritten page tree root, the
// copied page objects, a classic xref table and a trailer whose /Prev is the
// last startxref of original. dst must have been opened from original.
func AppendIncrement(original []byte, dst *model.Context, srcs []*model.Context) ([]byte, int, error) {
	if len(original) == 0 {
		return nil, 0, ErrNotLoaded
	}
	prev, err := lastStartXref(original)
	if err != nil {
		return nil, 0, err
	}
	if dst.Root == nil {
		return nil, 0, fmt.Errorf("%w: trailer has no /Root", ErrMalformed)
	}
	cat, err := dst.Catalog()
	if err != nil {
		return nil, 0, malformed(err)
	}
	rootRef := cat.IndirectRefEntry("Pages")
	if rootRef == nil {
		return nil, 0, fmt.Errorf("%w: catalog has no page tree", ErrMalformed)
	}
	rootDict, err := dst.DereferenceDict(*rootRef)
	if err != nil || rootDict == nil {
		return nil, 0, fmt.Errorf("%w: page tree root is not a dictionary", ErrMalformed)
	}

	u := newUpdate(dst)
	root := types.Dict{}
	maps.Copy(root, rootDict)
	kids := slices.Clone(root.ArrayEntry("Kids"))
	pages := dst.PageCount
	for i, src := range srcs {
		refs, err := u.copyPages(src, *rootRef)
		if err != nil {
			return nil, 0, fmt.Errorf("append file %d: %w", i+1, err)
		}
		kids = append(kids, refs...)
		pages += len(refs)
	}
	root["Kids"] = kids
	root["Count"] = types.Integer(pages)
	u.set(rootRef.ObjectNumber.Value(), rootRef.GenerationNumber.Value(), root)

	trailer := types.Dict{"Root": *dst.Root}
	if dst.Info != nil {
		trailer["Info"] = *dst.Info
	}
	if len(dst.ID) > 0 {
		trailer["ID"] = dst.ID
	}
	return u.write(original, prev, trailer), pages, nil
}

// rawStream is a copied stream whose bytes are written unchanged.
type rawStream struct {
	dict types.Dict
	data []byte
}

type update struct {
	next    int
	objects map[int]any
	gens    map[int]int
}

func newUpdate(dst *model.Context) *update {
	next := 0
	if dst.Size != nil {
		next = *dst.Size
	}
	for n := range dst.Table {
		next = max(next, n+1)
	}
	return &update{next: next, objects: map[int]any{}, gens: map[int]int{}}
}

func (u *update) reserve() int {
	n := u.next
	u.next++
	return n
}

func (u *update) set(n, gen int, o any) {
	u.objects[n] = o
	u.gens[n] = gen
}

func ref(n int) types.IndirectRef {
	return types.IndirectRef{ObjectNumber: types.Integer(n), GenerationNumber: 0}
}

// pageCopier renumbers the objects reachable from one source's pages into
// the update.
type pageCopier struct {
	src  *model.Context
	u    *update
	seen map[int]int
}

func (u *update) copyPages(src *model.Context, parent types.IndirectRef) ([]types.Object, error) {
	c := &pageCopier{src: src, u: u, seen: map[int]int{}}

	type leaf struct {
		dict types.Dict
		inh  *model.InheritedPageAttrs
		num  int
	}
	// Page numbers are reserved up front so links between pages resolve to
	// the copies instead of pulling in a second one.
	leaves := make([]leaf, 0, src.PageCount)
	for p := 1; p <= src.PageCount; p++ {
		d, pageRef, inh, err := src.PageDict(p, true)
		if err != nil {
			return nil, malformed(err)
		}
		if d == nil {
			return nil, fmt.Errorf("%w: page %d is missing", ErrMalformed, p)
		}
		n := u.reserve()
		if pageRef != nil {
			c.seen[pageRef.ObjectNumber.Value()] = n
		}
		leaves = append(leaves, leaf{dict: d, inh: inh, num: n})
	}

	refs := make([]types.Object, 0, len(leaves))
	for _, l := range leaves {
		page, err := c.copyDict(l.dict, "Parent")
		if err != nil {
			return nil, err
		}
		if err := c.inherit(page, l.inh); err != nil {
			return nil, err
		}
		page["Parent"] = parent
		u.set(l.num, 0, page)
		refs = append(refs, ref(l.num))
	}
	return refs, nil
}

// inherit materializes the attributes the page took from its old ancestors.
func (c *pageCopier) inherit(page types.Dict, inh *model.InheritedPageAttrs) error {
	if inh == nil {
		return nil
	}
	if _, ok := page["Resources"]; !ok && inh.Resources != nil {
		res, err := c.copy(inh.Resources)
		if err != nil {
			return err
		}
		page["Resources"] = res
	}
	if _, ok := page["MediaBox"]; !ok && inh.MediaBox != nil {
		page["MediaBox"] = inh.MediaBox.Array()
	}
	if _, ok := page["CropBox"]; !ok && inh.CropBox != nil {
		page["CropBox"] = inh.CropBox.Array()
	}
	if _, ok := page["Rotate"]; !ok && inh.Rotate != 0 {
		page["Rotate"] = types.Integer(inh.Rotate)
	}
	return nil
}

func (c *pageCopier) copy(o types.Object) (types.Object, error) {
	switch v := o.(type) {
	case types.IndirectRef:
		return c.copyRef(v)
	case *types.IndirectRef:
		if v == nil {
			return nil, nil
		}
		return c.copyRef(*v)
	case types.Dict:
		return c.copyDict(v)
	case types.Array:
		out := make(types.Array, len(v))
		for i, e := range v {
			ce, err := c.copy(e)
			if err != nil {
				return nil, err
			}
			out[i] = ce
		}
		return out, nil
	default:
		return o, nil
	}
}

func (c *pageCopier) copyDict(d types.Dict, skip ...string) (types.Dict, error) {
	out := make(types.Dict, len(d))
	for k, v := range d {
		if slices.Contains(skip, k) {
			continue
		}
		cv, err := c.copy(v)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

func (c *pageCopier) copyRef(r types.IndirectRef) (types.Object, error) {
	srcNum := r.ObjectNumber.Value()
	if n, ok := c.seen[srcNum]; ok {
		return ref(n), nil
	}
	n := c.u.reserve()
	c.seen[srcNum] = n

	o, err := c.src.Dereference(r)
	if err != nil {
		return nil, malformed(err)
	}
	switch v := o.(type) {
	case types.StreamDict:
		if v.Raw == nil {
			return nil, fmt.Errorf("%w: stream %d has no data", ErrMalformed, srcNum)
		}
		d, err := c.copyDict(v.Dict, "Length")
		if err != nil {
			return nil, err
		}
		c.u.set(n, 0, rawStream{dict: d, data: v.Raw})
	case types.Dict:
		// Pages reached through links keep no parent, so the source page
		// tree is never copied.
		var d types.Dict
		if t := v.Type(); t != nil && (*t == "Page" || *t == "Pages") {
			d, err = c.copyDict(v, "Parent")
		} else {
			d, err = c.copyDict(v)
		}
		if err != nil {
			return nil, err
		}
		c.u.set(n, 0, d)
	default:
		cv, err := c.copy(o)
		if err != nil {
			return nil, err
		}
		c.u.set(n, 0, cv)
	}
	return ref(n), nil
}

func (u *update) write(original []byte, prev int64, trailer types.Dict) []byte {
	var b bytes.Buffer
	b.Write(original)
	if last := original[len(original)-1]; !isEOL(last) {
		b.WriteByte('\n')
	}

	nums := slices.Sorted(maps.Keys(u.objects))
	offsets := make(map[int]int, len(nums))
	for _, n := range nums {
		offsets[n] = b.Len()
		fmt.Fprintf(&b, "%d %d obj\n", n, u.gens[n])
		switch v := u.objects[n].(type) {
		case rawStream:
			v.dict["Length"] = types.Integer(len(v.data))
			b.WriteString(v.dict.PDFString())
			b.WriteString("\nstream\n")
			b.Write(v.data)
			b.WriteString("\nendstream")
		case types.Object:
			if v == nil {
				b.WriteString("null")
			} else {
				b.WriteString(v.PDFString())
			}
		default:
			b.WriteString("null")
		}
		b.WriteString("\nendobj\n")
	}

	xref := b.Len()
	b.WriteString("xref\n")
	for len(nums) > 0 {
		run := 1
		for run < len(nums) && nums[run] == nums[0]+run {
			run++
		}
		fmt.Fprintf(&b, "%d %d\n", nums[0], run)
		for _, n := range nums[:run] {
			fmt.Fprintf(&b, "%010d %05d n\r\n", offsets[n], u.gens[n])
		}
		nums = nums[run:]
	}

	trailer["Size"] = types.Integer(u.next)
	trailer["Prev"] = types.Integer(prev)
	fmt.Fprintf(&b, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer.PDFString(), xref)
	return b.Bytes()
}

func lastStartXref(data []byte) (int64, error) {
	i := bytes.LastIndex(data, []byte("startxref"))
	if i < 0 {
		return 0, fmt.Errorf("%w: no startxref", ErrMalformed)
	}
	tail := data[i+len("startxref") : min(len(data), i+len("startxref")+64)]
	fields := bytes.Fields(tail)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty startxref", ErrMalformed)
	}
	off, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil || off < 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("%w: bad startxref %q", ErrMalformed, fields[0])
	}
	return off, nil
}
