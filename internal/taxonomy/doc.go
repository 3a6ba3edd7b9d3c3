// Package taxonomy defines the filer data model: the area/category/folder
// hierarchy, organization rules and their pattern grammar, match suggestions,
// and the audit records written by the organizer and watchers.
//
// Folder numbers follow the Johnny.Decimal convention. An area spans a range
// of ten category numbers ("10-19"), a category is a two digit number ("11"),
// and a folder is "CC.SS" ("11.01").
package taxonomy
