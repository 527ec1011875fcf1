package warp

import "fmt"

// EmbeddingGather sums token and positional embeddings for a sequence:
//
//	out[t][d] = wordTable[tokens[t]][d] + posTable[d][t]
//
// The word table is vocab×dim row-major. The positional table is stored
// dimension-major with an explicit stride: position t of dimension d
// lives at d*posStride+t, so the table reserves posStride positions per
// dimension independent of the sequence actually gathered. GPT-2
// checkpoints use DefaultPosStride.
//
// tokens is a device buffer of at least out.Rows int32 ids. Ids are
// validated against the vocabulary before dispatch; the gather itself
// is one thread per (token, dimension) pair and fully independent.
func EmbeddingGather(tokens DevicePtr, wordTable, posTable Matrix, posStride int, out Matrix) error {
	n, dim := out.Rows, out.Cols
	if wordTable.Cols != dim {
		return NewDimensionError("EmbeddingGather",
			fmt.Sprintf("word table width %d does not match output width %d", wordTable.Cols, dim))
	}
	if posStride <= 0 {
		return NewDimensionError("EmbeddingGather", "positional stride must be positive")
	}
	if n > posStride {
		return NewDimensionError("EmbeddingGather",
			fmt.Sprintf("sequence length %d exceeds positional stride %d", n, posStride))
	}
	if posTable.Len() < dim*posStride {
		return NewDimensionError("EmbeddingGather",
			fmt.Sprintf("positional table has %d elements, need %d", posTable.Len(), dim*posStride))
	}
	if out.Len() == 0 {
		return nil
	}
	if tokens.Size() < n*4 {
		return NewDimensionError("EmbeddingGather",
			fmt.Sprintf("token buffer holds %d ids, need %d", tokens.Size()/4, n))
	}

	ids := tokens.Int32()[:n]
	vocab := wordTable.Rows
	for t, id := range ids {
		if id < 0 || int(id) >= vocab {
			return NewDimensionError("EmbeddingGather",
				fmt.Sprintf("token id %d at position %d outside vocabulary of %d", id, t, vocab))
		}
	}

	word := wordTable.Data.Float32()
	pos := posTable.Data.Float32()
	dst := out.Data.Float32()[:out.Len()]

	block := Dim3{X: 256, Y: 1, Z: 1}
	grid := Dim3{X: (dim + block.X - 1) / block.X, Y: n, Z: 1}

	return Launch(func(tid ThreadID) {
		d := tid.GlobalX()
		t := tid.BlockIdx.Y
		if d >= dim {
			return
		}
		dst[t*dim+d] = word[int(ids[t])*dim+d] + pos[d*posStride+t]
	}, grid, block)
}
