package workflow

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/models"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportSettlementAudit writes one site's settlement position as an xlsx
// workbook: an Obligations sheet (the waterfall walk order, reference
// numbers, paid amounts and statuses) and a Payments sheet (amounts and the
// unapplied remainders). Reversed rows are excluded, matching what the
// waterfall itself sees.
func ExportSettlementAudit(db *gorm.DB, logger *logrus.Logger, w io.Writer, businessId string, siteId int) error {
	if logger == nil {
		logger = config.GetLogger()
	}
	if businessId == "" || siteId <= 0 {
		return &models.InvalidRequestError{Reason: "business and site are required"}
	}

	obligations, err := models.ListObligationsForSite(db, businessId, siteId, false, false)
	if err != nil {
		config.LogError(logger, "auditExport.go", "ExportSettlementAudit", "ListObligationsForSite", siteId, err)
		return err
	}
	payments, err := models.ListPaymentsForSite(db, businessId, siteId)
	if err != nil {
		config.LogError(logger, "auditExport.go", "ExportSettlementAudit", "ListPaymentsForSite", siteId, err)
		return err
	}

	f := excelize.NewFile()
	obligSheet := "Obligations"
	f.SetSheetName("Sheet1", obligSheet)

	f.SetCellValue(obligSheet, "A1", "Kind")
	f.SetCellValue(obligSheet, "B1", "Reference")
	f.SetCellValue(obligSheet, "C1", "Date")
	f.SetCellValue(obligSheet, "D1", "Total")
	f.SetCellValue(obligSheet, "E1", "Paid")
	f.SetCellValue(obligSheet, "F1", "Outstanding")
	f.SetCellValue(obligSheet, "G1", "Status")
	for i, o := range obligations {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(obligSheet, "A"+row, string(o.Kind))
		f.SetCellValue(obligSheet, "B"+row, o.ReferenceNumber)
		f.SetCellValue(obligSheet, "C"+row, o.EventDate.Format("2006-01-02"))
		f.SetCellValue(obligSheet, "D"+row, o.TotalAmount.String())
		f.SetCellValue(obligSheet, "E"+row, o.AmountPaid.String())
		f.SetCellValue(obligSheet, "F"+row, o.Outstanding().String())
		f.SetCellValue(obligSheet, "G"+row, string(o.Status))
	}

	paySheet := "Payments"
	if _, err := f.NewSheet(paySheet); err != nil {
		return err
	}
	f.SetCellValue(paySheet, "A1", "PaymentNumber")
	f.SetCellValue(paySheet, "B1", "Date")
	f.SetCellValue(paySheet, "C1", "Amount")
	f.SetCellValue(paySheet, "D1", "Unapplied")
	f.SetCellValue(paySheet, "E1", "Notes")
	for i, p := range payments {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(paySheet, "A"+row, p.PaymentNumber)
		f.SetCellValue(paySheet, "B"+row, p.PaymentDate.Format("2006-01-02"))
		f.SetCellValue(paySheet, "C"+row, p.Amount.String())
		f.SetCellValue(paySheet, "D"+row, p.UnappliedAmount.String())
		f.SetCellValue(paySheet, "E"+row, p.Notes)
	}

	if err := f.Write(w); err != nil {
		config.LogError(logger, "auditExport.go", "ExportSettlementAudit", "WriteWorkbook", siteId, err)
		return err
	}
	return nil
}
