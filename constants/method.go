package constants

// Method tags record which extraction strategy produced a result.
// They are diagnostics only; nothing branches on them downstream.
const (
	MethodTextRaw         = "text-raw"
	MethodTextFailed      = "text-failed"
	MethodPDFText         = "pdf-text"
	MethodPDFEmpty        = "pdf-empty"
	MethodPDFUnavailable  = "pdf-unavailable"
	MethodPDFOCR          = "pdf-ocr"
	MethodDocxDocconv     = "docx-docconv"
	MethodDocxXML         = "docx-xml"
	MethodDocxUnavailable = "docx-unavailable"
	MethodDocDocconv      = "doc-docconv"
	MethodDocUnavailable  = "doc-unavailable"
	MethodTableCSV        = "table-csv"
	MethodTableXLSX       = "table-xlsx"
	MethodTableXLS        = "table-xls"
	MethodTableFailed     = "table-failed"
	MethodImageOCR        = "image-ocr"
	MethodImageOCRFailed  = "image-ocr-failed"
	MethodSlidesOCR       = "slides-ocr"
	MethodExtractFailed   = "extract-failed"
)
