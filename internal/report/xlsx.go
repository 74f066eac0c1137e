package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/votesquad/voter-cli/internal/mece"
	"github.com/votesquad/voter-cli/internal/model"
)

// WriteXLSX writes a workbook with a Voters sheet and a Blocks sheet.
// The column layout matches the CSV exports.
func WriteXLSX(path string, elections mece.ElectionSet, points []model.VoterPoint, tallies []model.BlockTally, attrs map[string]model.BlockAttributes) error {
	f := xlsx.NewFile()

	voters, err := f.AddSheet("Voters")
	if err != nil {
		return eris.Wrap(err, "report: add voters sheet")
	}
	addRow(voters, voterHeader(elections))
	for _, p := range points {
		addRow(voters, voterRow(p, elections))
	}

	blocksSheet, err := f.AddSheet("Blocks")
	if err != nil {
		return eris.Wrap(err, "report: add blocks sheet")
	}
	withAttrs := attrs != nil
	addRow(blocksSheet, tallyHeader(withAttrs))
	for _, t := range tallies {
		addRow(blocksSheet, tallyRow(t, attrs, withAttrs))
	}

	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
