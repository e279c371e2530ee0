// Package barcode locates and decodes Data Matrix symbols.
//
// Callers depend on the Locator interface. The default implementation is
// backed by gozxing; tests substitute a LocatorFunc.
package barcode
