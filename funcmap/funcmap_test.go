/*******************************************************************************
 * Copyright (c) 2025, 2026 Genome Research Ltd.
 *
 * Author: Sendu Bala <sb10@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package funcmap

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const eggnogHeader = "#query\tseed_ortholog\tevalue\tscore\teggNOG_OGs\t" +
	"COG_category\tDescription\tPreferred_name\tEC\tKEGG_ko\tCAZy\tPFAMs\n"

const testEggnog = "## emapper version: 2.1.9\n" +
	"## time: Mon Feb  3 10:10:10 2025\n" +
	eggnogHeader +
	"P1\tr1\t2.5e-55\t200\tCOG0527@1|root\tE\taspartokinase\tthrA\t2.7.2.4\t" +
	"ko:K00928\t-\tAA_kinase\n" +
	"P2\tr2\t0.001\t20\tCOG0001@1|root\tS\tunknown\t-\t-\t-\t-\t-\n" +
	"P3\tr3\t1e-20\t80\t-\tS\tglycosyltransferase\t-\t-\t" +
	"ko:K00001,ko:K00002\tGT2\t-\n" +
	"P4\tr4\t3e-30\t120\tCOG0527@1|root\tE\taspartokinase 2\t-\t2.7.2.4\t" +
	"ko:K00928\t-\tAA_kinase\n" +
	"## 4 queries scanned\n"

func TestEggnog(t *testing.T) {
	Convey("Given eggNOG-mapper output", t, func() {
		m, err := NewEggnog(strings.NewReader(testEggnog), 0, nil)
		So(err, ShouldBeNil)

		Convey("Significant rows are kept with cleaned values", func() {
			So(m.Len(), ShouldEqual, 3)

			a, ok := m.Annotation("P1")
			So(ok, ShouldBeTrue)
			So(a.Evalue, ShouldEqual, 2.5e-55)
			So(a.EvalueOK, ShouldBeTrue)
			So(a.OGs, ShouldEqual, "COG0527@1|root")
			So(a.COG, ShouldEqual, "E")
			So(a.Name, ShouldEqual, "thrA")
			So(a.EC, ShouldEqual, "2.7.2.4")
			So(a.KO, ShouldEqual, "K00928")
			So(a.CAZy, ShouldEqual, "")

			a, ok = m.Annotation("P3")
			So(ok, ShouldBeTrue)
			So(a.OGs, ShouldEqual, "")
			So(a.KO, ShouldEqual, "K00001,K00002")
			So(a.CAZy, ShouldEqual, "GT2")

			_, ok = m.Annotation("P2")
			So(ok, ShouldBeFalse)

			_, ok = m.Annotation("nonesuch")
			So(ok, ShouldBeFalse)
		})

		Convey("A looser evalue threshold keeps more rows", func() {
			m, err = NewEggnog(strings.NewReader(testEggnog), 0.01, nil)
			So(err, ShouldBeNil)
			So(m.Len(), ShouldEqual, 4)

			_, ok := m.Annotation("P2")
			So(ok, ShouldBeTrue)
		})
	})

	Convey("An accession pattern keeps only the matching part", t, func() {
		data := eggnogHeader +
			"P1.t1\tr1\t1e-50\t200\t-\tE\td\t-\t-\tko:K1\t-\t-\n" +
			"xyz\tr2\t1e-50\t200\t-\tE\td\t-\t-\tko:K2\t-\t-\n"

		m, err := NewEggnog(strings.NewReader(data), 0, regexp.MustCompile(`P\d+`))
		So(err, ShouldBeNil)
		So(m.Len(), ShouldEqual, 1)

		a, ok := m.Annotation("P1")
		So(ok, ShouldBeTrue)
		So(a.KO, ShouldEqual, "K1")
	})

	Convey("Bad eggNOG data is rejected", t, func() {
		_, err := NewEggnog(strings.NewReader("## comment only\n"), 0, nil)
		So(err, ShouldEqual, ErrNoHeader)

		_, err = NewEggnog(strings.NewReader("#query\tevalue\tKEGG_ko\n"), 0, nil)
		So(errors.Is(err, ErrMissingColumn), ShouldBeTrue)

		_, err = NewEggnog(strings.NewReader(eggnogHeader+"P1\tr1\tnotanumber\t"+
			"200\t-\tE\td\t-\t-\t-\t-\t-\n"), 0, nil)
		So(errors.Is(err, ErrBadEvalue), ShouldBeTrue)

		_, err = NewEggnog(strings.NewReader(eggnogHeader+"P1\tr1\n"), 0, nil)
		So(err, ShouldEqual, ErrMalformedRow)

		_, err = NewEggnog(strings.NewReader(testEggnog), -1, nil)
		So(err, ShouldEqual, ErrInvalidEvalue)
	})
}

func TestKO(t *testing.T) {
	Convey("Given a two column accession to KO mapping", t, func() {
		m, err := NewKO(strings.NewReader(
			"P1\tK00928\nP2\tK00001\nP3\t-\n\tK99999\n"), nil)
		So(err, ShouldBeNil)
		So(m.Len(), ShouldEqual, 2)

		a, ok := m.Annotation("P1")
		So(ok, ShouldBeTrue)
		So(a.KO, ShouldEqual, "K00928")
		So(a.EvalueOK, ShouldBeFalse)
		So(a.OGs, ShouldEqual, "")

		_, ok = m.Annotation("P3")
		So(ok, ShouldBeFalse)
	})
}

func TestForAccessions(t *testing.T) {
	Convey("Given an annotation map", t, func() {
		m, err := NewEggnog(strings.NewReader(testEggnog), 0, nil)
		So(err, ShouldBeNil)

		Convey("Unannotated accession groups resolve to nothing", func() {
			_, ok := m.ForAccessions(nil, false)
			So(ok, ShouldBeFalse)

			_, ok = m.ForAccessions([]string{"P2", "nonesuch"}, false)
			So(ok, ShouldBeFalse)
		})

		Convey("A single annotated accession resolves to its own annotation", func() {
			a, ok := m.ForAccessions([]string{"P1", "nonesuch"}, false)
			So(ok, ShouldBeTrue)
			So(a.Query, ShouldEqual, "P1")
			So(a.KO, ShouldEqual, "K00928")
		})

		Convey("Without combining, only full agreement survives", func() {
			a, ok := m.ForAccessions([]string{"P1", "P4"}, false)
			So(ok, ShouldBeTrue)
			So(a.Query, ShouldEqual, "")
			So(a.KO, ShouldEqual, "K00928")
			So(a.COG, ShouldEqual, "E")
			So(a.EC, ShouldEqual, "2.7.2.4")
			So(a.Name, ShouldEqual, "")
			So(a.EvalueOK, ShouldBeFalse)
		})

		Convey("Combining joins every annotation in the group", func() {
			a, ok := m.ForAccessions([]string{"P1", "P3"}, true)
			So(ok, ShouldBeTrue)
			So(a.Query, ShouldEqual, "P1;P3")
			So(a.KO, ShouldEqual, "K00928;K00001,K00002")
			So(a.Name, ShouldEqual, "thrA;-")
			So(a.CAZy, ShouldEqual, "-;GT2")
			So(a.COG, ShouldEqual, "E;S")
			So(a.EvalueOK, ShouldBeTrue)
			So(a.Evalue, ShouldEqual, 2.5e-55)
		})
	})
}
