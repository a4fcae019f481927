package objects

import "sort"

// EncodeGroup serializes one (group,variation) worth of values as a single
// object header, choosing the narrowest qualifier that losslessly
// represents the indices present. withData controls whether value bytes
// follow the indices
// (false produces an index-only header, as used by READ/ENABLE_UNSOLICITED/
// ASSIGN_CLASS requests).
func EncodeGroup(group, variation uint8, values []Value, withData bool) ([]byte, error) {
	if variation == 0 && withData {
		return nil, ErrVariationZeroInResponse
	}
	shape, known := Lookup(GroupVariation{group, variation})
	if !known {
		return nil, ErrUnknownObject
	}

	sorted := append([]Value(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	indices := make([]uint32, len(sorted))
	for i, v := range sorted {
		indices[i] = v.Index
	}

	var out []byte
	out = append(out, group, variation)

	if len(indices) == 0 {
		out = append(out, byte(QualAllObjects))
		return out, nil
	}

	useBitfield := shape.Kind == kindBitfield || shape.Kind == kindDoubleBit
	contiguous := isContiguous(indices)

	var q Qualifier
	if contiguous {
		if useBitfield {
			q = QualPackedRange
		} else {
			q = narrowestRangeQualifier(indices[0], indices[len(indices)-1])
		}
	} else {
		q = narrowestCountPrefixQualifier(indices[len(indices)-1])
	}
	out = append(out, byte(q))

	w := q.indexWidth()
	if contiguous {
		out = append(out, putIndex(w, indices[0])...)
		out = append(out, putIndex(w, indices[len(indices)-1])...)
	} else {
		out = append(out, putIndex(w, uint32(len(indices)))...)
	}

	if !withData || shape.Kind == kindNone {
		return out, nil
	}

	if useBitfield {
		bits := bitsPerPackedValue(shape)
		if !contiguous {
			// index-prefixed packed bitfields are not produced by this
			// encoder: bitfield points are always read/written as a
			// contiguous range in this stack.
			return nil, ErrUnknownObject
		}
		out = append(out, packBitfieldValues(sorted, bits)...)
		return out, nil
	}

	for _, v := range sorted {
		if !contiguous {
			out = append(out, putIndex(w, v.Index)...)
		}
		b, err := encodeOneValue(shape, v)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeOneValue(shape Shape, v Value) ([]byte, error) {
	var out []byte
	if shape.HasFlags {
		out = append(out, v.Flags)
	}
	vb, err := encodeValueBytes(GroupVariation{}, shape, v)
	if err != nil {
		return nil, err
	}
	out = append(out, vb...)
	if shape.HasTime {
		t := encodeTime48(v.Time.Millis)
		out = append(out, t[:]...)
	}
	return out, nil
}
