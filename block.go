package inflate

import "sync"

/*
 * Copyright (c) 2018 Josh Varga
 *
 * This software is provided 'as-is', without any express or implied
 * warranty. In no event will the authors be held liable for any damages
 * arising from the use of this software.
 *
 * Permission is granted to anyone to use this software for any purpose,
 * including commercial applications, and to alter it and redistribute it
 * freely, subject to the following restrictions:
 *
 * 1. The origin of this software must not be misrepresented; you must not
 *    claim that you wrote the original software. If you use this software
 *    in a product, an acknowledgment in the product documentation would be
 *    appreciated but is not required.
 * 2. Altered source versions must be plainly marked as such, and must not be
 *    misrepresented as being the original software.
 * 3. This notice may not be removed or altered from any source distribution.
 */

const (
	blockStored  = 0 // no compression
	blockFixed   = 1 // fixed Huffman codes
	blockDynamic = 2 // dynamic Huffman codes

	endOfBlock = 256
	maxNumLit  = 286 // literal/length symbols; 286 and 287 are reserved
	maxNumDist = 30  // distance symbols; 30 and 31 are reserved

	numCodeLengthCodes = 19 // symbols of the code-length alphabet
)

// Length codes 257..285: base match lengths and extra bit counts
// (RFC 1951 section 3.2.5).
var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
var lengthExtra = [29]int{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}

// Distance codes 0..29: base distances and extra bit counts.
var distanceBase = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145,
	8193, 12289, 16385, 24577}
var distanceExtra = [30]int{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}

// Order in which the code-length alphabet's own lengths appear in a
// dynamic block header (RFC 1951 section 3.2.7).
var codeLengthOrder = [numCodeLengthCodes]int{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// decoder is the state of one Inflate call: the bit cursor over the
// compressed input, the sliding window, and the growing output.
type decoder struct {
	br  *bitReader
	win *window
	out []byte
}

// emit appends bytes to the output and records them in the window.
func (d *decoder) emit(p []byte) {
	d.out = append(d.out, p...)
	for _, c := range p {
		d.win.writeByte(c)
	}
}

/*
 * Stored block.
 *
 * Format notes:
 *
 * - The block begins at the next byte boundary with a little-endian
 *   16-bit length LEN and its one's complement NLEN, followed by LEN
 *   verbatim bytes.
 *
 * - The verbatim bytes still enter the sliding window: later blocks may
 *   back-reference them.
 */
func (d *decoder) decodeStored() error {
	d.br.alignToByte()
	header, err := d.br.peekBytes(4)
	if err != nil {
		return err
	}
	length := int(header[0]) | int(header[1])<<8
	nlen := int(header[2]) | int(header[3])<<8
	if nlen != length^0xffff {
		return ErrUncompressedLengthMismatch
	}
	if err := d.br.skipBytes(4); err != nil {
		return err
	}
	data, err := d.br.peekBytes(length)
	if err != nil {
		return err
	}
	if err := d.br.skipBytes(length); err != nil {
		return err
	}
	d.emit(data)
	return nil
}

// The fixed literal/length and distance codes of RFC 1951 section 3.2.6,
// built once on first use.  The distance code covers all 32 five-bit
// codes; 30 and 31 take part in the code but are rejected when decoded.
var fixedOnce sync.Once
var fixedLiteralTable *huffman
var fixedDistanceTable *huffman

func fixedTables() (*huffman, *huffman) {
	fixedOnce.Do(func() {
		lengths := make([]int, 288)
		for i := 0; i < 144; i++ {
			lengths[i] = 8
		}
		for i := 144; i < 256; i++ {
			lengths[i] = 9
		}
		for i := 256; i < 280; i++ {
			lengths[i] = 7
		}
		for i := 280; i < 288; i++ {
			lengths[i] = 8
		}
		fixedLiteralTable, _ = newHuffman(lengths)

		distances := make([]int, 32)
		for i := range distances {
			distances[i] = 5
		}
		fixedDistanceTable, _ = newHuffman(distances)
	})
	return fixedLiteralTable, fixedDistanceTable
}

func (d *decoder) decodeFixed() error {
	literal, distance := fixedTables()
	return d.decodeBlockBody(literal, distance)
}

/*
 * Dynamic block.
 *
 * Format notes:
 *
 * - The header carries three counts: HLIT+257 literal/length codes,
 *   HDIST+1 distance codes and HCLEN+4 code-length codes.  The
 *   code-length code's own lengths follow as 3-bit fields in a fixed
 *   permutation order.
 *
 * - The code-length code then encodes the bit lengths of both remaining
 *   alphabets as one run: symbols 0..15 are literal lengths, 16 repeats
 *   the previous length 3-6 times, 17 and 18 emit 3-10 and 11-138
 *   zeros.  A repeat may straddle the boundary between the two
 *   alphabets but must not overrun their combined count.
 *
 * - The tables built here live only for this block.
 */
func (d *decoder) decodeDynamic() error {
	hlit, err := d.br.readBits(5)
	if err != nil {
		return err
	}
	hdist, err := d.br.readBits(5)
	if err != nil {
		return err
	}
	hclen, err := d.br.readBits(4)
	if err != nil {
		return err
	}
	numLit := int(hlit) + 257
	numDist := int(hdist) + 1

	codeLengths := make([]int, numCodeLengthCodes)
	for i := 0; i < int(hclen)+4; i++ {
		l, err := d.br.readBits(3)
		if err != nil {
			return err
		}
		codeLengths[codeLengthOrder[i]] = int(l)
	}
	codeLengthTable, err := newHuffman(codeLengths)
	if err != nil {
		return err
	}

	lengths, err := d.readCodeLengths(codeLengthTable, numLit+numDist)
	if err != nil {
		return err
	}
	literal, err := newHuffman(lengths[:numLit])
	if err != nil {
		return err
	}
	distance, err := newHuffman(lengths[numLit:])
	if err != nil {
		return err
	}
	return d.decodeBlockBody(literal, distance)
}

// readCodeLengths decodes exactly n bit lengths with the code-length
// alphabet.  The previous length carried by symbol 16 is the last length
// emitted, including the zeros of a 17/18 run.
func (d *decoder) readCodeLengths(codeLengthTable *huffman, n int) ([]int, error) {
	lengths := make([]int, 0, n)
	previous := -1
	for len(lengths) < n {
		symbol, err := codeLengthTable.decode(d.br)
		if err != nil {
			return nil, err
		}
		switch {
		case symbol <= 15:
			lengths = append(lengths, symbol)
			previous = symbol
		case symbol == 16:
			if previous < 0 {
				return nil, ErrInvalidRepeatCode
			}
			extra, err := d.br.readBits(2)
			if err != nil {
				return nil, err
			}
			repeat := 3 + int(extra)
			if len(lengths)+repeat > n {
				return nil, ErrInvalidLength
			}
			for i := 0; i < repeat; i++ {
				lengths = append(lengths, previous)
			}
		case symbol == 17:
			extra, err := d.br.readBits(3)
			if err != nil {
				return nil, err
			}
			repeat := 3 + int(extra)
			if len(lengths)+repeat > n {
				return nil, ErrInvalidLength
			}
			for i := 0; i < repeat; i++ {
				lengths = append(lengths, 0)
			}
			previous = 0
		case symbol == 18:
			extra, err := d.br.readBits(7)
			if err != nil {
				return nil, err
			}
			repeat := 11 + int(extra)
			if len(lengths)+repeat > n {
				return nil, ErrInvalidLength
			}
			for i := 0; i < repeat; i++ {
				lengths = append(lengths, 0)
			}
			previous = 0
		default:
			return nil, ErrSymbolNotFound
		}
	}
	return lengths, nil
}

/*
 * Block body, shared by fixed and dynamic blocks.
 *
 * Format notes:
 *
 * - The body is a sequence of literal/length symbols.  Symbols below
 *   256 are literal bytes; 256 ends the block; 257..285 start a
 *   back-reference and are followed by the length's extra bits, a
 *   distance symbol and the distance's extra bits.
 *
 * - Extra bits are plain LSB-first integers, not Huffman coded.
 */
func (d *decoder) decodeBlockBody(literal, distance *huffman) error {
	for {
		symbol, err := literal.decode(d.br)
		if err != nil {
			return err
		}
		switch {
		case symbol < endOfBlock:
			d.emit([]byte{byte(symbol)})
		case symbol == endOfBlock:
			return nil
		case symbol < maxNumLit:
			length, err := d.readLength(symbol)
			if err != nil {
				return err
			}
			distanceSymbol, err := distance.decode(d.br)
			if err != nil {
				return err
			}
			dist, err := d.readDistance(distanceSymbol)
			if err != nil {
				return err
			}
			match, err := d.win.copyMatch(length, dist)
			if err != nil {
				return err
			}
			d.out = append(d.out, match...)
		default:
			// 286 and 287 are reserved
			return ErrSymbolNotFound
		}
	}
}

// readLength maps a length symbol to its match length, consuming the
// symbol's extra bits.
func (d *decoder) readLength(symbol int) (int, error) {
	base := lengthBase[symbol-257]
	extra := lengthExtra[symbol-257]
	if extra == 0 {
		return base, nil
	}
	val, err := d.br.readBits(uint(extra))
	if err != nil {
		return 0, err
	}
	return base + int(val), nil
}

// readDistance maps a distance symbol to its match distance, consuming
// the symbol's extra bits.
func (d *decoder) readDistance(symbol int) (int, error) {
	if symbol >= maxNumDist {
		return 0, ErrInvalidDistanceSymbol
	}
	base := distanceBase[symbol]
	extra := distanceExtra[symbol]
	if extra == 0 {
		return base, nil
	}
	val, err := d.br.readBits(uint(extra))
	if err != nil {
		return 0, err
	}
	return base + int(val), nil
}
