/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"strconv"
	"strings"

	"github.com/uptrace/bun/dialect"
)

// Syntax holds the per-store differences in statement text.
type Syntax struct {
	quote     byte
	numbered  bool
	textType  string
	returning bool
}

// SyntaxFor returns the statement syntax for a bun dialect. Unknown
// dialects get the sqlite syntax.
func SyntaxFor(name dialect.Name) Syntax {
	switch name {
	case dialect.PG:
		return Syntax{quote: '"', numbered: true, textType: "TEXT", returning: true}
	case dialect.MySQL:
		return Syntax{quote: '`', textType: "CHAR"}
	default:
		return Syntax{quote: '"', textType: "TEXT"}
	}
}

// QuoteIdent wraps name in the identifier delimiter, doubling any embedded
// delimiter. It must only be applied to names confirmed by the catalog.
func (s Syntax) QuoteIdent(name string) string {
	return quoteWith(s.quote, name)
}

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (s Syntax) Placeholder(n int) string {
	if s.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func quoteWith(q byte, name string) string {
	var b strings.Builder
	b.Grow(len(name) + 2)
	b.WriteByte(q)
	for i := 0; i < len(name); i++ {
		if name[i] == q {
			b.WriteByte(q)
		}
		b.WriteByte(name[i])
	}
	b.WriteByte(q)
	return b.String()
}
