package database

var AppendOnlyStatements = appendOnlyStatements
