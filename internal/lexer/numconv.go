// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lexer

import (
	"strconv"
	"strings"

	"github.com/M366/zcc/internal/token"
)

// ConvertPPNumbers walks a token list converting every PPNumber token to a
// Number token, per §4.1: integer parsing is attempted first, recognizing
// 0x/0b/0 bases and U/L/LL suffixes; on failure the lexeme is parsed as a
// float (f/F suffix -> float, else double). This runs post-preprocess, so
// macro-expanded pp-numbers are converted too.
func ConvertPPNumbers(head *token.Token) error {
	for t := head; t != nil && t.Kind != token.EOF; t = t.Next {
		if t.Kind != token.PPNumber {
			continue
		}
		if err := convertOne(t); err != nil {
			return err
		}
	}
	return nil
}

func convertOne(t *token.Token) error {
	lex := t.Lexeme

	if v, numType, ok := tryParseInteger(lex); ok {
		t.Kind = token.Number
		t.NumType = numType
		t.IntValue = v
		return nil
	}

	// Floating literal: f/F suffix means float, else double.
	body := lex
	isFloatSuffix := false
	if strings.HasSuffix(body, "f") || strings.HasSuffix(body, "F") {
		isFloatSuffix = true
		body = body[:len(body)-1]
	} else if strings.HasSuffix(body, "l") || strings.HasSuffix(body, "L") {
		body = body[:len(body)-1]
	}
	fv, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return &Error{Filename: t.Pos.Filename, Line: t.Pos.Line, Msg: "invalid numeric literal: " + lex}
	}
	t.Kind = token.Number
	t.FloatValue = fv
	if isFloatSuffix {
		t.NumType = token.NumFloat
	} else {
		t.NumType = token.NumDouble
	}
	return nil
}

// tryParseInteger recognizes 0x/0b/0-prefixed integers with U/L/LL
// suffixes (in any combination/case) and infers the narrowest type per
// §8's boundary cases: a decimal literal that overflows int32 becomes
// long; one that overflows int64 (as unsigned) becomes unsigned long; a
// hex/octal/binary literal that overflows int32 but fits uint32 becomes
// unsigned int before falling back to long/unsigned long.
func tryParseInteger(lex string) (uint64, token.NumType, bool) {
	body, suffixU, suffixL := splitIntSuffix(lex)
	if body == "" {
		return 0, 0, false
	}

	base := 10
	digits := body
	nonDecimal := false
	switch {
	case strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X"):
		base = 16
		digits = body[2:]
		nonDecimal = true
	case strings.HasPrefix(body, "0b") || strings.HasPrefix(body, "0B"):
		base = 2
		digits = body[2:]
		nonDecimal = true
	case strings.HasPrefix(body, "0") && len(body) > 1:
		base = 8
		digits = body[1:]
		nonDecimal = true
	}
	if digits == "" {
		digits = "0"
	}

	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, 0, false
	}

	numType := inferIntType(v, suffixU, suffixL, nonDecimal)
	return v, numType, true
}

func splitIntSuffix(lex string) (body string, unsigned, long bool) {
	body = lex
	for {
		if len(body) == 0 {
			break
		}
		last := body[len(body)-1]
		switch last {
		case 'u', 'U':
			unsigned = true
			body = body[:len(body)-1]
		case 'l', 'L':
			long = true
			body = body[:len(body)-1]
		default:
			return body, unsigned, long
		}
	}
	return body, unsigned, long
}

func inferIntType(v uint64, suffixU, suffixL, nonDecimal bool) token.NumType {
	fitsInt32 := v <= 0x7fffffff
	fitsUInt32 := v <= 0xffffffff
	fitsInt64 := v <= 0x7fffffffffffffff

	if suffixU && suffixL {
		return token.NumULong
	}
	if suffixL {
		if fitsInt64 {
			return token.NumLong
		}
		return token.NumULong
	}
	if suffixU {
		if fitsUInt32 {
			return token.NumUInt
		}
		return token.NumULong
	}

	// No suffix: decimal literals never become unsigned (§8: 2147483648
	// -> long); hex/octal/binary literals may (§8: 0x80000000 -> unsigned
	// int, 0xFFFFFFFFFFFFFFFF -> unsigned long).
	if fitsInt32 {
		return token.NumInt
	}
	if nonDecimal && fitsUInt32 {
		return token.NumUInt
	}
	if fitsInt64 {
		return token.NumLong
	}
	return token.NumULong
}
