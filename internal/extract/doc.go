// Package extract turns the rendered harvest page into a DailyHarvestRecord.
//
// Every <table> is classified by a keyword predicate over its text and then
// handed to the row parser for that kind. Classification and row parsing are
// separate so each can be exercised without a browser.
package extract
